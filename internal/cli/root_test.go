package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/codelet/pkg/facade"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, err := execute(t, "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "codelet version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := execute(t, "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "coding-agent sessions")
		for _, sub := range []string{"serve", "status", "stop", "tools", "version"} {
			assert.Contains(t, out, sub)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "codelet "+GetVersion()))
}

func TestToolsCommand(t *testing.T) {
	t.Run("claude definitions", func(t *testing.T) {
		out, err := execute(t, "tools", "--provider", "claude")
		require.NoError(t, err)

		var defs []facade.Definition
		require.NoError(t, json.Unmarshal([]byte(out), &defs))
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		assert.Contains(t, names, "Bash")
		assert.Contains(t, names, "LS")
	})

	t.Run("gemini uses its own names", func(t *testing.T) {
		out, err := execute(t, "tools", "--provider", "gemini")
		require.NoError(t, err)
		assert.Contains(t, out, "run_shell_command")
		assert.NotContains(t, out, `"Bash"`)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := execute(t, "tools", "--provider", "llama")
		assert.ErrorIs(t, err, facade.ErrUnknownProvider)
	})
}
