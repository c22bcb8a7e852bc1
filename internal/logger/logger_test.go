package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		l, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, zerolog.InfoLevel, l.Zerolog().GetLevel())
	})

	t.Run("file output with redaction", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "codelet.log")

		l, err := New(Config{Level: "debug", File: logFile, Redaction: true})
		require.NoError(t, err)

		zl := l.Zerolog()
		zl.Debug().Str("session_id", "s1").Msg("key sk-ant-REDACTED")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"session_id":"s1"`)
		assert.Contains(t, string(data), "[REDACTED]")
		assert.NotContains(t, string(data), "abcdefghijklmnopqrstuvwxyz")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		l, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, zerolog.InfoLevel, l.Zerolog().GetLevel())
	})

	t.Run("installs global logger", func(t *testing.T) {
		l, err := New(Config{Level: "warn"})
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
	})
}

func TestSetLevel(t *testing.T) {
	l, err := New(Config{Level: "info"})
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, zerolog.DebugLevel, l.Zerolog().GetLevel())
	assert.Equal(t, zerolog.DebugLevel, log.Logger.GetLevel())

	assert.Error(t, l.SetLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, l.Zerolog().GetLevel())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Empty(t, cfg.File)
}
