package facade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	t.Run("every provider has tools", func(t *testing.T) {
		for _, p := range Providers {
			assert.NotEmpty(t, reg.ToolsForProvider(p), p)
		}
	})

	t.Run("tools are sorted and scoped", func(t *testing.T) {
		tools := reg.ToolsForProvider(Gemini)
		for i := 1; i < len(tools); i++ {
			assert.Less(t, tools[i-1].ToolName(), tools[i].ToolName())
		}
		for _, f := range tools {
			assert.Equal(t, Gemini, f.Provider())
		}
	})

	t.Run("lookup", func(t *testing.T) {
		f, err := reg.Facade(Gemini, "list_directory")
		require.NoError(t, err)
		assert.Equal(t, FamilyLs, f.Family())

		_, err = reg.Facade(Claude, "list_directory")
		assert.ErrorIs(t, err, ErrFacadeNotFound)
	})

	t.Run("definitions", func(t *testing.T) {
		defs := reg.DefinitionsForProvider(ZAI)
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		assert.Contains(t, names, "list_dir")
		assert.Contains(t, names, "run_command")
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		assert.ErrorIs(t, reg.Register(GeminiListDirectory()), ErrDuplicateFacade)
	})

	t.Run("non flat rejected", func(t *testing.T) {
		r := NewEmptyRegistry()
		err := r.Register(&staticFacade{
			provider: Claude,
			family:   FamilyLs,
			def: Definition{Name: "nested", Parameters: object(props{
				"opts": map[string]interface{}{"type": "object"},
			})},
		})
		assert.ErrorIs(t, err, ErrNotFlat)
	})
}

func TestRegistryBind(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	backend := &recordingBackend{}
	wrappers, err := reg.Bind(ZAI, Backends{FamilyLs: backend})
	require.NoError(t, err)
	require.Len(t, wrappers, 1)
	assert.Equal(t, "list_dir", wrappers[0].Name())

	res, err := wrappers[0].Call(context.Background(), map[string]interface{}{"path": "src"})
	require.NoError(t, err)
	assert.Equal(t, "listing of src", res.Output)

	_, err = reg.Bind("mistral", Backends{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
