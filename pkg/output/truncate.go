package output

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxOutputChars is the default character limit of a model-facing result
	MaxOutputChars = 30000

	// MaxLineLength is the default length above which a line is omitted
	MaxLineLength = 2000

	// MaxLines is the default number of entries listing tools return
	MaxLines = 2000

	// OmittedLine replaces lines longer than the line limit
	OmittedLine = "[Omitted long line]"
)

// Limits configures finalization of accumulated output
type Limits struct {
	MaxOutputChars int `json:"max_output_chars" mapstructure:"max_output_chars"`
	MaxLineLength  int `json:"max_line_length" mapstructure:"max_line_length"`
}

// DefaultLimits returns the default output limits
func DefaultLimits() Limits {
	return Limits{
		MaxOutputChars: MaxOutputChars,
		MaxLineLength:  MaxLineLength,
	}
}

// Result is finalized model-facing output
type Result struct {
	Output       string `json:"output"`
	Truncated    bool   `json:"truncated,omitempty"`
	OmittedChars int    `json:"omitted_chars,omitempty"`
	TotalChars   int    `json:"total_chars"`
}

// Truncate applies the limits to s. Lines longer than MaxLineLength are
// replaced first, then the text is cut to MaxOutputChars characters and a
// notice naming the omitted count is appended. Zero limits disable the step.
func Truncate(s string, limits Limits) Result {
	if limits.MaxLineLength > 0 {
		s = omitLongLines(s, limits.MaxLineLength)
	}

	total := utf8.RuneCountInString(s)
	if limits.MaxOutputChars <= 0 || total <= limits.MaxOutputChars {
		return Result{Output: s, TotalChars: total}
	}

	kept := cutRunes(s, limits.MaxOutputChars)
	omitted := total - limits.MaxOutputChars
	notice := FormatTruncationWarning(omitted, "chars", true, limits.MaxOutputChars)

	return Result{
		Output:       kept + "\n" + notice,
		Truncated:    true,
		OmittedChars: omitted,
		TotalChars:   total,
	}
}

// LinesResult is the outcome of TruncateLines
type LinesResult struct {
	Output        string
	CharTruncated bool
	Remaining     int
	Included      int
}

// TruncateLines joins whole lines until the next one would exceed maxChars.
func TruncateLines(lines []string, maxChars int) LinesResult {
	var b strings.Builder
	included := 0

	for _, line := range lines {
		if b.Len()+len(line)+1 > maxChars {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
		included++
	}

	remaining := len(lines) - included
	return LinesResult{
		Output:        b.String(),
		CharTruncated: remaining > 0,
		Remaining:     remaining,
		Included:      included,
	}
}

// FormatTruncationWarning formats the notice appended to truncated output.
func FormatTruncationWarning(remaining int, itemType string, charTruncated bool, maxChars int) string {
	if charTruncated {
		return fmt.Sprintf("... [%d %s truncated - output truncated at %d chars] ...", remaining, itemType, maxChars)
	}
	return fmt.Sprintf("... [%d %s truncated] ...", remaining, itemType)
}

func omitLongLines(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	lines := strings.Split(s, "\n")
	changed := false
	for i, line := range lines {
		if utf8.RuneCountInString(line) > maxLen {
			lines[i] = OmittedLine
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(lines, "\n")
}

func cutRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
