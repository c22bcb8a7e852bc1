// Package coretools implements the backends behind every facade family:
// directory listing, shell, file access, search and web.
package coretools

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/harun/codelet/pkg/browser"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/toolexecutor"
)

// DefaultDangerousPatterns match shell commands that need operator
// confirmation before they run.
var DefaultDangerousPatterns = []string{
	`\brm\s+(-[a-zA-Z]*[rRf][a-zA-Z]*\s+)+`,
	`\bsudo\b`,
	`\bmkfs(\.\w+)?\b`,
	`\bdd\s+.*\bof=`,
	`>\s*/dev/(sd|nvme|disk)`,
	`\bchmod\s+(-R\s+)?777\b`,
	`:\(\)\s*\{\s*:\|:&\s*\};:`,
	`\bgit\s+push\s+.*(--force\b|-f\b)`,
	`\bgit\s+reset\s+--hard\b`,
	`\b(shutdown|reboot|halt)\b`,
}

// WebClient fetches and searches the web for the web family
type WebClient interface {
	Search(ctx context.Context, query string) ([]browser.SearchResult, error)
	Fetch(ctx context.Context, url string) (*browser.PageContent, error)
	FindInPage(ctx context.Context, url, pattern string) ([]string, error)
	Screenshot(ctx context.Context, url, outputPath string, fullPage bool) (string, error)
}

// Options configures the core tools
type Options struct {
	Logger zerolog.Logger

	// WorkspaceRoot confines file paths when the execution context carries
	// no working directory of its own.
	WorkspaceRoot string

	// Web backs the web family; nil leaves web tools unbound
	Web WebClient

	// DangerousPatterns overrides DefaultDangerousPatterns when non-nil
	DangerousPatterns []string
}

// Tools holds the configured backends
type Tools struct {
	opts      Options
	dangerous []*regexp.Regexp
	logger    zerolog.Logger
}

// New compiles the dangerous command patterns and builds the backends
func New(opts Options) (*Tools, error) {
	patterns := opts.DangerousPatterns
	if patterns == nil {
		patterns = DefaultDangerousPatterns
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid dangerous command pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &Tools{
		opts:      opts,
		dangerous: compiled,
		logger:    opts.Logger.With().Str("component", "coretools").Logger(),
	}, nil
}

// Backends returns one backend per family. The web family is present only
// when a WebClient is configured.
func (t *Tools) Backends() facade.Backends {
	backends := facade.Backends{
		facade.FamilyLs:     facade.BackendFunc(t.executeLs),
		facade.FamilyBash:   facade.BackendFunc(t.executeBash),
		facade.FamilyFile:   facade.BackendFunc(t.executeFile),
		facade.FamilySearch: facade.BackendFunc(t.executeSearch),
	}
	if t.opts.Web != nil {
		backends[facade.FamilyWeb] = facade.BackendFunc(t.executeWeb)
	}
	return backends
}

// Register binds every facade of provider p to these backends and registers
// the resulting tools with the executor.
func (t *Tools) Register(executor *toolexecutor.Executor, registry *facade.Registry, p facade.Provider) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}
	if registry == nil {
		return errors.New("facade registry is required")
	}

	wrappers, err := registry.Bind(p, t.Backends())
	if err != nil {
		return fmt.Errorf("failed to bind %s tools: %w", p, err)
	}
	tools := make([]facade.Tool, len(wrappers))
	for i, w := range wrappers {
		tools[i] = w
	}
	if err := executor.Register(tools...); err != nil {
		return fmt.Errorf("failed to register %s tools: %w", p, err)
	}
	return nil
}

func unsupported(params facade.Params) error {
	return fmt.Errorf("%w: %T", facade.ErrUnsupportedParams, params)
}
