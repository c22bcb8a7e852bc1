package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/codelet/pkg/agent"
	"github.com/harun/codelet/pkg/facade"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "claude", cfg.Sessions.DefaultProvider)
	assert.Equal(t, 30000, cfg.Sessions.MaxOutputChars)
	assert.Equal(t, 2*time.Minute, cfg.Sessions.ToolTimeout)
	assert.True(t, cfg.Gateway.Enabled)
	assert.Equal(t, "127.0.0.1:7420", cfg.Gateway.Listen)
	assert.NoError(t, cfg.Validate())
}

func TestProvidersConfig_Credentials(t *testing.T) {
	p := ProvidersConfig{
		Anthropic: agentCreds("sk-ant-x"),
		ZAI:       agentCreds("zai-key"),
	}

	creds := p.Credentials()

	assert.Len(t, creds, 2)
	assert.Equal(t, "sk-ant-x", creds[facade.Claude].APIKey)
	assert.Equal(t, "zai-key", creds[facade.ZAI].APIKey)
	_, ok := creds[facade.OpenAI]
	assert.False(t, ok)
}

func TestConfigString_RedactsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Anthropic = agentCreds("sk-ant-REDACTED")

	out := cfg.String()
	assert.NotContains(t, out, "abcdefghijklmnopqrstuvwxyz")
	assert.Contains(t, out, "[REDACTED]")
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		dir := t.TempDir()

		cfg, err := Load(filepath.Join(dir, "missing.json"))

		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Gateway.Listen, cfg.Gateway.Listen)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "codelet.log"), cfg.Logging.File)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "codelet.json")
		writeFile(t, path, `{
			"data_dir": "`+filepath.ToSlash(dir)+`",
			"logging": {"level": "debug"},
			"sessions": {"max_output_chars": 500, "tool_timeout": "45s", "default_provider": "gemini"},
			"agent": {"max_turns": 7},
			"providers": {"gemini": {"api_key": "g-key", "model": "gemini-2.5-pro"}},
			"gateway": {"listen": "0.0.0.0:9000", "shared_secret": "s3cret"}
		}`)

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 500, cfg.Sessions.MaxOutputChars)
		assert.Equal(t, DefaultConfig().Sessions.MaxLineLength, cfg.Sessions.MaxLineLength)
		assert.Equal(t, 45*time.Second, cfg.Sessions.ToolTimeout)
		assert.Equal(t, "gemini", cfg.Sessions.DefaultProvider)
		assert.Equal(t, 7, cfg.Agent.MaxTurns)
		assert.Equal(t, "gemini-2.5-pro", cfg.Providers.Gemini.Model)
		assert.Equal(t, "0.0.0.0:9000", cfg.Gateway.Listen)
		assert.Equal(t, "s3cret", cfg.Gateway.SharedSecret)
		assert.Equal(t, dir, filepath.ToSlash(cfg.DataDir))
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "codelet.json")
		writeFile(t, path, `{"gateway": {"listen": "127.0.0.1:1"}}`)
		t.Setenv("CODELET_GATEWAY_LISTEN", "127.0.0.1:2")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:2", cfg.Gateway.Listen)
		assert.Equal(t, "sk-ant-from-env", cfg.Providers.Anthropic.APIKey)
	})

	t.Run("malformed file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "codelet.json")
		writeFile(t, path, `{"gateway":`)

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"provider", func(c *Config) { c.Sessions.DefaultProvider = "llama" }, "default_provider"},
		{"output limit", func(c *Config) { c.Sessions.MaxOutputChars = 0 }, "max_output_chars"},
		{"schedule", func(c *Config) { c.Sessions.ReapSchedule = "every minute" }, "reap schedule"},
		{"reap after", func(c *Config) { c.Sessions.ReapAfter = 0 }, "reap_after"},
		{"temperature", func(c *Config) { c.Agent.Temperature = 3 }, "temperature"},
		{"anthropic key", func(c *Config) { c.Providers.Anthropic = agentCreds("nope") }, "providers.claude"},
		{"listen", func(c *Config) { c.Gateway.Listen = "" }, "gateway.listen"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "loud"
		cfg.Gateway.Listen = ""

		errs := NewValidator().ValidateConfig(cfg)
		assert.Len(t, errs, 2)
	})
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codelet.json")
	writeFile(t, path, `{"logging": {"level": "info"}}`)

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(WatcherConfig{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnReload: func(cfg *Config) { reloads <- cfg },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// an invalid file is ignored
	writeFile(t, path, `{"logging": {"level": "loud"}}`)
	select {
	case <-reloads:
		t.Fatal("invalid config must not be applied")
	case <-time.After(200 * time.Millisecond):
	}

	writeFile(t, path, `{"logging": {"level": "debug"}}`)
	select {
	case cfg := <-reloads:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{OnReload: func(*Config) {}})
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{Path: "x.json"})
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func agentCreds(key string) agent.Credentials {
	return agent.Credentials{APIKey: key}
}
