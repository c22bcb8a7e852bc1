package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/codelet/pkg/coretools"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
	"github.com/harun/codelet/pkg/session"
	"github.com/harun/codelet/pkg/toolexecutor"
)

// FactoryConfig configures the runners built for new sessions
type FactoryConfig struct {
	Logger zerolog.Logger

	// DefaultProvider is used when a session names none
	DefaultProvider facade.Provider
	Providers       map[facade.Provider]Credentials

	Agent       Config
	ToolTimeout time.Duration
	Limits      output.Limits

	// CurrentLimits, when set, replaces Limits and is read as each session
	// is created, so reloaded limits reach new sessions.
	CurrentLimits func() output.Limits

	// Tools backs every session's tools
	Tools *coretools.Tools

	// NewProvider overrides NewProvider, mainly for tests
	NewProvider ProviderFunc
}

// NewRunnerFactory returns a session.RunnerFactory. Each session gets its
// own executor holding the facades of its provider, and its own history.
func NewRunnerFactory(cfg FactoryConfig) (session.RunnerFactory, error) {
	if cfg.Tools == nil {
		return nil, fmt.Errorf("core tools are required")
	}
	registry, err := facade.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("build facade registry: %w", err)
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = facade.Claude
	}
	newProvider := cfg.NewProvider
	if newProvider == nil {
		newProvider = NewProvider
	}

	return func(sessionID string, opts session.Options) (session.Runner, error) {
		p := cfg.DefaultProvider
		if opts.Provider != "" {
			parsed, err := facade.ParseProvider(opts.Provider)
			if err != nil {
				return nil, err
			}
			p = parsed
		}

		creds := cfg.Providers[p]
		model := opts.Model
		if model == "" {
			model = creds.Model
		}
		if model == "" {
			model = DefaultModels[p]
		}

		provider, err := newProvider(context.Background(), p, creds)
		if err != nil {
			return nil, err
		}

		limits := cfg.Limits
		if cfg.CurrentLimits != nil {
			limits = cfg.CurrentLimits()
		}

		logger := cfg.Logger.With().Str("session_id", sessionID).Logger()
		executor := toolexecutor.New(toolexecutor.Config{
			Logger:         logger,
			DefaultTimeout: cfg.ToolTimeout,
			Limits:         limits,
		})
		if err := cfg.Tools.Register(executor, registry, p); err != nil {
			return nil, err
		}

		agentCfg := cfg.Agent.withDefaults()
		agentCfg.SystemPrompt = systemPrompt(agentCfg.SystemPrompt, opts)

		return NewRunner(RunnerConfig{
			Provider: provider,
			Executor: executor,
			Model:    model,
			Agent:    agentCfg,
			Logger:   logger,
		})
	}, nil
}

func systemPrompt(base string, opts session.Options) string {
	var b strings.Builder
	b.WriteString(base)
	if opts.WorkingDir != "" {
		fmt.Fprintf(&b, "\n\nWorking directory: %s", opts.WorkingDir)
	}
	if opts.Role != nil {
		fmt.Fprintf(&b, "\n\nYou are watching another session as %s (%s).", opts.Role.Name, opts.Role.Authority.DisplayName())
		if opts.Role.Description != nil && *opts.Role.Description != "" {
			fmt.Fprintf(&b, " %s", *opts.Role.Description)
		}
	}
	return b.String()
}
