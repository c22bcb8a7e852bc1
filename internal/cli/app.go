package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/harun/codelet/internal/config"
	"github.com/harun/codelet/internal/observability"
	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/agent"
	"github.com/harun/codelet/pkg/browser"
	"github.com/harun/codelet/pkg/coretools"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/gateway"
	"github.com/harun/codelet/pkg/output"
	"github.com/harun/codelet/pkg/session"
)

// App is a running codelet process: the session registry plus the services
// around it.
type App struct {
	cfg      *config.Config
	logger   zerolog.Logger
	limits   atomic.Pointer[output.Limits]
	browser  *browser.Browser
	registry *session.Registry
	reaper   *session.Reaper
	gateway  *gateway.Server
}

// NewApp builds every component from cfg without starting background work
func NewApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{cfg: cfg, logger: logger}
	limits := cfg.Sessions.Limits
	a.limits.Store(&limits)

	if cfg.Telemetry.Tracing {
		if err := tracing.Init(tracing.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     version,
			SampleRatio: cfg.Telemetry.SampleRatio,
		}); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}
	if cfg.Telemetry.Metrics {
		observability.EnsureRegistered()
	}

	workspace := cfg.Tools.WorkspaceRoot
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		workspace = wd
	}

	toolOpts := coretools.Options{
		Logger:            logger,
		WorkspaceRoot:     workspace,
		DangerousPatterns: cfg.Tools.DangerousPatterns,
	}
	if cfg.Browser.Enabled {
		a.browser = browser.New(browser.Config{
			Logger:            logger,
			ControlURL:        cfg.Browser.ControlURL,
			Headless:          cfg.Browser.Headless,
			NoSandbox:         cfg.Browser.NoSandbox,
			ChromePath:        cfg.Browser.ChromePath,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			ScreenshotDir:     filepath.Join(cfg.DataDir, "screenshots"),
			Security:          cfg.Browser.Security,
		})
		toolOpts.Web = a.browser
	}
	tools, err := coretools.New(toolOpts)
	if err != nil {
		return nil, fmt.Errorf("core tools: %w", err)
	}

	defaultProvider, err := facade.ParseProvider(cfg.Sessions.DefaultProvider)
	if err != nil {
		return nil, err
	}
	factory, err := agent.NewRunnerFactory(agent.FactoryConfig{
		Logger:          logger,
		DefaultProvider: defaultProvider,
		Providers:       cfg.Providers.Credentials(),
		Agent:           cfg.Agent,
		ToolTimeout:     cfg.Sessions.ToolTimeout,
		CurrentLimits:   func() output.Limits { return *a.limits.Load() },
		Tools:           tools,
	})
	if err != nil {
		return nil, fmt.Errorf("runner factory: %w", err)
	}

	a.registry = session.NewRegistry(session.Config{
		Logger:       logger,
		NewRunner:    factory,
		MaxSessions:  cfg.Sessions.MaxSessions,
		HistoryLimit: cfg.Sessions.HistoryLimit,
		InputQueue:   cfg.Sessions.InputQueue,
	})

	if cfg.Sessions.ReapSchedule != "" {
		a.reaper, err = session.NewReaper(a.registry, session.ReaperConfig{
			Logger:    logger,
			Schedule:  cfg.Sessions.ReapSchedule,
			IdleAfter: cfg.Sessions.ReapAfter,
		})
		if err != nil {
			a.registry.Close()
			return nil, fmt.Errorf("reaper: %w", err)
		}
	}

	if cfg.Gateway.Enabled {
		a.gateway, err = gateway.NewServer(gateway.Config{
			Listen:            cfg.Gateway.Listen,
			SharedSecret:      cfg.Gateway.SharedSecret,
			TickInterval:      cfg.Gateway.TickInterval,
			RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
			MaxConcurrent:     cfg.Gateway.MaxConcurrent,
			Sessions:          a.registry,
			Logger:            logger,
		})
		if err != nil {
			a.registry.Close()
			return nil, fmt.Errorf("gateway: %w", err)
		}
	}

	return a, nil
}

// Start launches the reaper and the gateway
func (a *App) Start() error {
	if a.reaper != nil {
		a.reaper.Start()
	}
	if a.gateway != nil {
		if err := a.gateway.Start(); err != nil {
			return err
		}
	}
	a.logger.Info().
		Str("default_provider", a.cfg.Sessions.DefaultProvider).
		Bool("gateway", a.gateway != nil).
		Bool("browser", a.browser != nil).
		Msg("codelet started")
	return nil
}

// Registry returns the session registry
func (a *App) Registry() *session.Registry {
	return a.registry
}

// GatewayAddr returns the bound gateway address, empty when disabled
func (a *App) GatewayAddr() string {
	if a.gateway == nil {
		return ""
	}
	return a.gateway.Addr()
}

// ApplyReload takes the settings that can change at runtime from a reloaded
// config: output limits for new sessions and, through onLevel, the log level.
func (a *App) ApplyReload(cfg *config.Config, onLevel func(string) error) {
	limits := cfg.Sessions.Limits
	a.limits.Store(&limits)
	if onLevel != nil && cfg.Logging.Level != a.cfg.Logging.Level {
		if err := onLevel(cfg.Logging.Level); err != nil {
			a.logger.Warn().Err(err).Msg("Log level not applied")
		} else {
			a.cfg.Logging.Level = cfg.Logging.Level
		}
	}
	a.cfg.Sessions.Limits = limits

	observability.RecordConfigAudit(context.Background(), "reload", map[string]interface{}{
		"max_output_chars": limits.MaxOutputChars,
		"max_line_length":  limits.MaxLineLength,
		"log_level":        cfg.Logging.Level,
	})
}

// Shutdown stops the gateway, destroys every session and releases the browser
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.gateway != nil {
		if err := a.gateway.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.reaper != nil {
		a.reaper.Stop()
	}
	a.registry.Close()
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if a.cfg.Telemetry.Tracing {
		if err := tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	a.logger.Info().Msg("codelet stopped")
	return errors.Join(errs...)
}
