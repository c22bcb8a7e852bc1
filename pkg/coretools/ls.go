package coretools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
)

func (t *Tools) executeLs(ctx context.Context, params facade.Params) (facade.Result, error) {
	p, ok := params.(facade.LsList)
	if !ok {
		return facade.Result{}, unsupported(params)
	}

	dir, err := t.resolve(ctx, p.Path)
	if err != nil {
		return facade.Result{}, err
	}
	shown := dir
	if p.Path != nil && strings.TrimSpace(*p.Path) != "" {
		shown = *p.Path
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return facade.Result{}, fmt.Errorf("Directory not found: %s", shown)
	}
	if err != nil {
		return facade.Result{}, fmt.Errorf("failed to stat %s: %w", shown, err)
	}
	if !info.IsDir() {
		return facade.Result{}, fmt.Errorf("Not a directory: %s", shown)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return facade.Result{}, fmt.Errorf("failed to read directory %s: %w", shown, err)
	}
	if len(entries) == 0 {
		return facade.Result{Output: "(empty directory)"}, nil
	}

	lines := listing(entries)
	return facade.Result{
		Output:   truncateItems(lines, "entries", output.MaxLines),
		Metadata: map[string]interface{}{"entries": len(entries)},
	}, nil
}

// listing renders directories first, then files, each group sorted by name
func listing(entries []fs.DirEntry) []string {
	var dirs, files []fs.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}
	byName := func(s []fs.DirEntry) {
		sort.Slice(s, func(i, j int) bool { return s[i].Name() < s[j].Name() })
	}
	byName(dirs)
	byName(files)

	lines := make([]string, 0, len(entries))
	for _, e := range append(dirs, files...) {
		lines = append(lines, formatEntry(e))
	}
	return lines
}

func formatEntry(e fs.DirEntry) string {
	name := e.Name()
	if e.IsDir() {
		name += "/"
	}
	info, err := e.Info()
	if err != nil {
		if e.IsDir() {
			return "d---------  ????????  ????-??-?? ??:??  " + name
		}
		return "----------  ????????  ????-??-?? ??:??  " + name
	}
	return fmt.Sprintf("%s  %8d  %s  %s",
		permissions(info.Mode()), info.Size(), info.ModTime().Format("2006-01-02 15:04"), name)
}

func permissions(mode fs.FileMode) string {
	typeChar := "-"
	switch {
	case mode.IsDir():
		typeChar = "d"
	case mode&fs.ModeSymlink != 0:
		typeChar = "l"
	}
	return typeChar + mode.Perm().String()[1:]
}

// truncateItems caps a listing at maxItems lines and the output char limit,
// appending a warning naming what was left out.
func truncateItems(lines []string, itemType string, maxItems int) string {
	total := len(lines)
	if maxItems > 0 && total > maxItems {
		lines = lines[:maxItems]
	}
	res := output.TruncateLines(lines, output.MaxOutputChars)
	out := strings.TrimSuffix(res.Output, "\n")

	remaining := total - res.Included
	if remaining > 0 {
		out += "\n" + output.FormatTruncationWarning(remaining, itemType, res.CharTruncated, output.MaxOutputChars)
	}
	return out
}
