package config

import (
	"encoding/json"
	"time"

	"github.com/harun/codelet/internal/logger"
	"github.com/harun/codelet/pkg/agent"
	"github.com/harun/codelet/pkg/browser"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
)

// Config represents the main codelet configuration
type Config struct {
	Logging   logger.Config   `json:"logging" mapstructure:"logging"`
	Sessions  SessionsConfig  `json:"sessions" mapstructure:"sessions"`
	Agent     agent.Config    `json:"agent" mapstructure:"agent"`
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Tools     ToolsConfig     `json:"tools" mapstructure:"tools"`
	Gateway   GatewayConfig   `json:"gateway" mapstructure:"gateway"`
	Browser   BrowserConfig   `json:"browser" mapstructure:"browser"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// DataDir holds the log file and screenshots
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// SessionsConfig bounds the session registry and tool output
type SessionsConfig struct {
	DefaultProvider string        `json:"default_provider" mapstructure:"default_provider"`
	MaxSessions     int           `json:"max_sessions" mapstructure:"max_sessions"`
	HistoryLimit    int           `json:"history_limit" mapstructure:"history_limit"`
	InputQueue      int           `json:"input_queue" mapstructure:"input_queue"`
	ToolTimeout     time.Duration `json:"tool_timeout" mapstructure:"tool_timeout"`

	output.Limits `mapstructure:",squash"`

	// ReapSchedule is a cron expression; empty disables the reaper
	ReapSchedule string        `json:"reap_schedule" mapstructure:"reap_schedule"`
	ReapAfter    time.Duration `json:"reap_after" mapstructure:"reap_after"`
}

// ProvidersConfig holds one credential set per model provider
type ProvidersConfig struct {
	Anthropic agent.Credentials `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    agent.Credentials `json:"openai" mapstructure:"openai"`
	Gemini    agent.Credentials `json:"gemini" mapstructure:"gemini"`
	ZAI       agent.Credentials `json:"zai" mapstructure:"zai"`
}

// Credentials returns the providers that have an API key
func (p ProvidersConfig) Credentials() map[facade.Provider]agent.Credentials {
	all := map[facade.Provider]agent.Credentials{
		facade.Claude: p.Anthropic,
		facade.OpenAI: p.OpenAI,
		facade.Gemini: p.Gemini,
		facade.ZAI:    p.ZAI,
	}
	out := make(map[facade.Provider]agent.Credentials, len(all))
	for provider, creds := range all {
		if creds.APIKey != "" {
			out[provider] = creds
		}
	}
	return out
}

// ToolsConfig configures the built-in tool backends
type ToolsConfig struct {
	// WorkspaceRoot confines file tools for sessions without a working dir
	WorkspaceRoot string `json:"workspace_root" mapstructure:"workspace_root"`

	// DangerousPatterns replaces the default confirm-before-run shell patterns
	DangerousPatterns []string `json:"dangerous_patterns,omitempty" mapstructure:"dangerous_patterns"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled           bool          `json:"enabled" mapstructure:"enabled"`
	Listen            string        `json:"listen" mapstructure:"listen"`
	SharedSecret      string        `json:"shared_secret" mapstructure:"shared_secret"`
	TickInterval      time.Duration `json:"tick_interval" mapstructure:"tick_interval"`
	RequestsPerMinute int           `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int           `json:"max_concurrent" mapstructure:"max_concurrent"`
}

// BrowserConfig configures the go-rod backend of the web tools
type BrowserConfig struct {
	Enabled           bool                   `json:"enabled" mapstructure:"enabled"`
	ControlURL        string                 `json:"control_url" mapstructure:"control_url"`
	Headless          bool                   `json:"headless" mapstructure:"headless"`
	NoSandbox         bool                   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath        string                 `json:"chrome_path" mapstructure:"chrome_path"`
	NavigationTimeout time.Duration          `json:"navigation_timeout" mapstructure:"navigation_timeout"`
	Security          browser.SecurityConfig `json:"security" mapstructure:"security"`
}

// TelemetryConfig toggles metrics and OpenTelemetry tracing
type TelemetryConfig struct {
	Metrics     bool   `json:"metrics" mapstructure:"metrics"`
	Tracing     bool   `json:"tracing" mapstructure:"tracing"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
	// SampleRatio is the fraction of traces kept, 1 keeps all
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		Sessions: SessionsConfig{
			DefaultProvider: string(facade.Claude),
			MaxSessions:     64,
			HistoryLimit:    2000,
			InputQueue:      32,
			ToolTimeout:     2 * time.Minute,
			Limits:          output.DefaultLimits(),
			ReapSchedule:    "*/5 * * * *",
			ReapAfter:       time.Hour,
		},
		Agent: agent.DefaultConfig(),
		Gateway: GatewayConfig{
			Enabled:           true,
			Listen:            "127.0.0.1:7420",
			TickInterval:      30 * time.Second,
			RequestsPerMinute: 600,
			MaxConcurrent:     32,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Metrics:     true,
			ServiceName: "codelet",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return logger.Redact(string(data))
}
