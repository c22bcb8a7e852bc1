package coretools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
)

// NoMatches is returned by search tools that found nothing
const NoMatches = "No matches found"

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

func (t *Tools) executeSearch(ctx context.Context, params facade.Params) (facade.Result, error) {
	switch p := params.(type) {
	case facade.SearchGrep:
		return t.grep(ctx, p)
	case facade.SearchGlob:
		return t.glob(ctx, p)
	default:
		return facade.Result{}, unsupported(params)
	}
}

type grepMatch struct {
	path string
	line int
	text string
}

func (t *Tools) grep(ctx context.Context, p facade.SearchGrep) (facade.Result, error) {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return facade.Result{}, fmt.Errorf("Invalid regex pattern: %w", err)
	}
	root, err := t.workspaceRoot(ctx)
	if err != nil {
		return facade.Result{}, err
	}
	base, err := t.resolve(ctx, p.Path)
	if err != nil {
		return facade.Result{}, err
	}

	var matches []grepMatch
	walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != base && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		found, err := grepFile(path, re)
		if err != nil {
			return nil
		}
		shown := display(root, path)
		for _, m := range found {
			m.path = shown
			matches = append(matches, m)
		}
		return nil
	})
	if walkErr != nil {
		return facade.Result{}, walkErr
	}

	if len(matches) == 0 {
		return facade.Result{Output: NoMatches}, nil
	}

	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = fmt.Sprintf("%s:%d:%s", m.path, m.line, truncateLine(m.text, output.MaxLineLength))
	}
	return facade.Result{
		Output:   truncateItems(lines, "matches", 0),
		Metadata: map[string]interface{}{"matches": len(matches)},
	}, nil
}

func grepFile(path string, re *regexp.Regexp) ([]grepMatch, error) {
	data, _, err := readFileWithLimit(path, maxReadBytes)
	if err != nil {
		return nil, err
	}
	if isBinary(data) {
		return nil, nil
	}

	var found []grepMatch
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxReadBytes)
	n := 0
	for scanner.Scan() {
		n++
		if line := scanner.Text(); re.MatchString(line) {
			found = append(found, grepMatch{line: n, text: line})
		}
	}
	return found, scanner.Err()
}

// glob lists files matching pattern, newest first. A pattern without a
// slash matches file names at any depth.
func (t *Tools) glob(ctx context.Context, p facade.SearchGlob) (facade.Result, error) {
	base, err := t.resolve(ctx, p.Path)
	if err != nil {
		return facade.Result{}, err
	}

	pattern := filepath.ToSlash(strings.TrimSpace(p.Pattern))
	if filepath.IsAbs(p.Pattern) {
		rel, err := filepath.Rel(base, p.Pattern)
		if err != nil || strings.HasPrefix(rel, "..") {
			return facade.Result{}, fmt.Errorf("pattern %q is outside the search path", p.Pattern)
		}
		pattern = filepath.ToSlash(rel)
	}
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return facade.Result{}, fmt.Errorf("Invalid glob pattern: %s", p.Pattern)
	}

	found, err := doublestar.Glob(os.DirFS(base), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return facade.Result{}, fmt.Errorf("glob failed: %w", err)
	}

	type hit struct {
		path  string
		mtime int64
	}
	hits := make([]hit, 0, len(found))
	for _, rel := range found {
		if inSkippedDir(rel) {
			continue
		}
		full := filepath.Join(base, filepath.FromSlash(rel))
		var mtime int64
		if info, err := os.Stat(full); err == nil {
			mtime = info.ModTime().UnixNano()
		}
		hits = append(hits, hit{path: full, mtime: mtime})
	}
	if len(hits) == 0 {
		return facade.Result{Output: NoMatches}, nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].mtime != hits[j].mtime {
			return hits[i].mtime > hits[j].mtime
		}
		return hits[i].path < hits[j].path
	})
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = h.path
	}
	return facade.Result{
		Output:   truncateItems(lines, "files", 0),
		Metadata: map[string]interface{}{"files": len(hits)},
	}, nil
}

func inSkippedDir(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}
