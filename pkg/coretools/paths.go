package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/codelet/pkg/toolexecutor"
)

// maxReadBytes caps how much of a single file the tools load
const maxReadBytes = 10 << 20

func (t *Tools) workspaceRoot(ctx context.Context) (string, error) {
	if dir := strings.TrimSpace(toolexecutor.WorkingDirFromContext(ctx)); dir != "" {
		return filepath.Clean(dir), nil
	}
	if strings.TrimSpace(t.opts.WorkspaceRoot) != "" {
		return filepath.Clean(t.opts.WorkspaceRoot), nil
	}
	return "", fmt.Errorf("workspace root is not configured")
}

// resolve maps a tool path into the workspace. Empty means the root itself.
func (t *Tools) resolve(ctx context.Context, path *string) (string, error) {
	root, err := t.workspaceRoot(ctx)
	if err != nil {
		return "", err
	}
	if path == nil || strings.TrimSpace(*path) == "" {
		return root, nil
	}
	return resolvePathInWorkspace(root, *path)
}

func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
		return candidate, nil
	}
	return "", fmt.Errorf("path %q is outside workspace root", pathValue)
}

// display renders an absolute path relative to root when it lies inside it
func display(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	extra := make([]byte, 1)
	n, _ := file.Read(extra)
	return buf.Bytes(), n > 0, nil
}

// isBinary reports whether data looks like a binary file
func isBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) != -1
}
