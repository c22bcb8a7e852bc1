package coretools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
)

func (t *Tools) executeFile(ctx context.Context, params facade.Params) (facade.Result, error) {
	switch p := params.(type) {
	case facade.FileRead:
		return t.readFile(ctx, p)
	case facade.FileWrite:
		return t.writeFile(ctx, p)
	case facade.FileEdit:
		return t.editFile(ctx, p)
	default:
		return facade.Result{}, unsupported(params)
	}
}

func (t *Tools) readFile(ctx context.Context, p facade.FileRead) (facade.Result, error) {
	target, err := t.resolve(ctx, &p.FilePath)
	if err != nil {
		return facade.Result{}, err
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return facade.Result{}, fmt.Errorf("File not found: %s", p.FilePath)
	}
	if err != nil {
		return facade.Result{}, fmt.Errorf("failed to stat %s: %w", p.FilePath, err)
	}
	if info.IsDir() {
		return facade.Result{}, fmt.Errorf("%s is a directory", p.FilePath)
	}

	data, capped, err := readFileWithLimit(target, maxReadBytes)
	if err != nil {
		return facade.Result{}, fmt.Errorf("failed to read %s: %w", p.FilePath, err)
	}
	if isBinary(data) {
		return facade.Result{}, fmt.Errorf("%s appears to be a binary file", p.FilePath)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(data) == 0 {
		lines = nil
	}
	total := len(lines)

	offset := 1
	if p.Offset != nil && *p.Offset > 1 {
		offset = *p.Offset
	}
	limit := output.MaxLines
	if p.Limit != nil && *p.Limit > 0 && *p.Limit < limit {
		limit = *p.Limit
	}

	start := offset - 1
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	numbered := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		numbered = append(numbered, fmt.Sprintf("%d: %s", i+1, truncateLine(lines[i], output.MaxLineLength)))
	}
	out := strings.Join(numbered, "\n")

	if remaining := total - end; remaining > 0 {
		out += "\n" + output.FormatTruncationWarning(remaining, "lines", true, output.MaxOutputChars)
	} else if capped {
		out += fmt.Sprintf("\n... [file truncated at %d bytes] ...", maxReadBytes)
	}

	return facade.Result{
		Output:   out,
		Metadata: map[string]interface{}{"total_lines": total},
	}, nil
}

func truncateLine(line string, max int) string {
	if utf8.RuneCountInString(line) <= max {
		return line
	}
	return string([]rune(line)[:max]) + "..."
}

func (t *Tools) writeFile(ctx context.Context, p facade.FileWrite) (facade.Result, error) {
	target, err := t.resolve(ctx, &p.FilePath)
	if err != nil {
		return facade.Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return facade.Result{}, fmt.Errorf("Error creating directories: %w", err)
	}
	if err := os.WriteFile(target, []byte(p.Content), 0o644); err != nil {
		return facade.Result{}, fmt.Errorf("Error writing file: %w", err)
	}

	t.logger.Debug().Str("path", target).Int("bytes", len(p.Content)).Msg("File written")
	return facade.Result{
		Output:   fmt.Sprintf("Successfully wrote to %s", p.FilePath),
		Metadata: map[string]interface{}{"bytes": len(p.Content)},
	}, nil
}

// editFile replaces the first occurrence of OldString
func (t *Tools) editFile(ctx context.Context, p facade.FileEdit) (facade.Result, error) {
	if p.OldString == "" {
		return facade.Result{}, fmt.Errorf("old_string cannot be empty")
	}
	target, err := t.resolve(ctx, &p.FilePath)
	if err != nil {
		return facade.Result{}, err
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return facade.Result{}, fmt.Errorf("File not found: %s", p.FilePath)
	}
	if err != nil {
		return facade.Result{}, fmt.Errorf("failed to stat %s: %w", p.FilePath, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return facade.Result{}, fmt.Errorf("failed to read %s: %w", p.FilePath, err)
	}
	content := string(data)
	if !strings.Contains(content, p.OldString) {
		return facade.Result{}, fmt.Errorf("old_string not found in file")
	}

	updated := strings.Replace(content, p.OldString, p.NewString, 1)
	if err := os.WriteFile(target, []byte(updated), info.Mode().Perm()); err != nil {
		return facade.Result{}, fmt.Errorf("Error writing file: %w", err)
	}

	return facade.Result{Output: fmt.Sprintf("Successfully edited %s", p.FilePath)}, nil
}
