package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/codelet/pkg/facade"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey checks key formats that providers publish. Unknown formats
// are accepted.
func (v *Validator) ValidateAPIKey(key string, provider facade.Provider) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case facade.Claude:
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case facade.OpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	if _, err := zerolog.ParseLevel(level); err != nil || level == "" {
		return fmt.Errorf("invalid log level: %q (must be one of: debug, info, warn, error)", level)
	}
	return nil
}

// ValidateSchedule checks a five-field cron expression
func (v *Validator) ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid reap schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateConfig returns every problem found in cfg
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if _, err := facade.ParseProvider(cfg.Sessions.DefaultProvider); err != nil {
		errs = append(errs, fmt.Errorf("sessions.default_provider: %w", err))
	}
	if cfg.Sessions.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("sessions.history_limit must be >= 0"))
	}
	if cfg.Sessions.InputQueue < 0 {
		errs = append(errs, fmt.Errorf("sessions.input_queue must be >= 0"))
	}
	if cfg.Sessions.ToolTimeout < 0 {
		errs = append(errs, fmt.Errorf("sessions.tool_timeout must be >= 0"))
	}
	if cfg.Sessions.MaxOutputChars <= 0 {
		errs = append(errs, fmt.Errorf("sessions.max_output_chars must be positive"))
	}
	if cfg.Sessions.MaxLineLength <= 0 {
		errs = append(errs, fmt.Errorf("sessions.max_line_length must be positive"))
	}
	if cfg.Sessions.ReapSchedule != "" {
		if err := v.ValidateSchedule(cfg.Sessions.ReapSchedule); err != nil {
			errs = append(errs, err)
		}
		if cfg.Sessions.ReapAfter <= 0 {
			errs = append(errs, fmt.Errorf("sessions.reap_after must be positive when a reap schedule is set"))
		}
	}

	if err := v.ValidateTemperature(cfg.Agent.Temperature); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}
	if cfg.Agent.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
			errs = append(errs, fmt.Errorf("agent: %w", err))
		}
	}
	if cfg.Agent.MaxTurns < 0 || cfg.Agent.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("agent: max_turns and max_retries must be >= 0"))
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be between 0 and 1"))
	}

	for provider, creds := range cfg.Providers.Credentials() {
		if err := v.ValidateAPIKey(creds.APIKey, provider); err != nil {
			errs = append(errs, fmt.Errorf("providers.%s: %w", provider, err))
		}
	}

	if cfg.Gateway.Enabled && strings.TrimSpace(cfg.Gateway.Listen) == "" {
		errs = append(errs, fmt.Errorf("gateway.listen is required when the gateway is enabled"))
	}
	if cfg.Gateway.RequestsPerMinute < 0 || cfg.Gateway.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("gateway limits must be >= 0"))
	}

	return errs
}

// Validate checks the configuration and joins every problem into one error
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
