package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Run("under limit is untouched", func(t *testing.T) {
		r := Truncate("hello\nworld\n", DefaultLimits())
		assert.False(t, r.Truncated)
		assert.Equal(t, "hello\nworld\n", r.Output)
		assert.Equal(t, 12, r.TotalChars)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		r := Truncate("héllo wörld", Limits{MaxOutputChars: 5})
		assert.True(t, r.Truncated)
		assert.Equal(t, 6, r.OmittedChars)
		assert.True(t, strings.HasPrefix(r.Output, "héllo\n"))
	})

	t.Run("long lines omitted", func(t *testing.T) {
		long := strings.Repeat("x", 50)
		r := Truncate("short\n"+long+"\nend", Limits{MaxLineLength: 10})
		assert.Equal(t, "short\n"+OmittedLine+"\nend", r.Output)
		assert.False(t, r.Truncated)
	})

	t.Run("zero limits disable truncation", func(t *testing.T) {
		in := strings.Repeat("y", 40000)
		r := Truncate(in, Limits{})
		assert.Equal(t, in, r.Output)
	})
}

func TestTruncateLines(t *testing.T) {
	lines := []string{"aaaa", "bbbb", "cccc", "dddd"}

	r := TruncateLines(lines, 12)
	assert.Equal(t, "aaaa\nbbbb\n", r.Output)
	assert.True(t, r.CharTruncated)
	assert.Equal(t, 2, r.Included)
	assert.Equal(t, 2, r.Remaining)

	r = TruncateLines(lines, 100)
	assert.False(t, r.CharTruncated)
	assert.Equal(t, 4, r.Included)
}

func TestFormatTruncationWarning(t *testing.T) {
	assert.Equal(t,
		"... [3 lines truncated - output truncated at 100 chars] ...",
		FormatTruncationWarning(3, "lines", true, 100))
	assert.Equal(t,
		"... [7 files truncated] ...",
		FormatTruncationWarning(7, "files", false, 100))
}
