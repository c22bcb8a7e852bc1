package facade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	calls []Params
}

func (b *recordingBackend) Execute(_ context.Context, p Params) (Result, error) {
	b.calls = append(b.calls, p)
	list, ok := p.(LsList)
	if !ok {
		return Result{}, ErrUnsupportedParams
	}
	dir := "."
	if list.Path != nil {
		dir = *list.Path
	}
	return Result{Output: "listing of " + dir, Metadata: map[string]interface{}{"dir": dir}}, nil
}

func strPtr(s string) *string { return &s }

func TestListDirectoryFacadesAreEquivalent(t *testing.T) {
	gemini := GeminiListDirectory()
	openai := OpenAIListDirectory()

	require.Equal(t, "list_directory", gemini.ToolName())
	require.Equal(t, "list_directory", openai.ToolName())
	assert.NotEqual(t, gemini.Definition().Parameters, openai.Definition().Parameters)

	backend := &recordingBackend{}
	gw, err := NewWrapper(gemini, backend)
	require.NoError(t, err)
	ow, err := NewWrapper(openai, backend)
	require.NoError(t, err)

	gRes, err := gw.Call(context.Background(), map[string]interface{}{"path": "src"})
	require.NoError(t, err)
	oRes, err := ow.Call(context.Background(), map[string]interface{}{"dir_path": "src"})
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, backend.calls[0], backend.calls[1])
	assert.Equal(t, LsList{Path: strPtr("src")}, backend.calls[0])
	assert.Equal(t, gRes, oRes)
}

func TestZAIListDir(t *testing.T) {
	f := ZAIListDir()
	assert.Equal(t, ZAI, f.Provider())
	assert.Equal(t, "list_dir", f.ToolName())
	assert.Equal(t, false, f.Definition().Parameters["additionalProperties"])

	p, err := f.MapParams(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, LsList{}, p)

	p, err = f.MapParams(map[string]interface{}{"path": ""})
	require.NoError(t, err)
	assert.Equal(t, LsList{}, p, "empty path falls back to the default directory")

	w, err := NewWrapper(f, &recordingBackend{})
	require.NoError(t, err)
	_, err = w.Call(context.Background(), map[string]interface{}{"path": "src", "recursive": true})
	assert.ErrorIs(t, err, ErrValidation, "strict schema rejects unknown properties")
}

func TestBashFacades(t *testing.T) {
	for _, f := range []Facade{ClaudeBash(), GeminiRunShellCommand(), OpenAIShell(), ZAIRunCommand()} {
		t.Run(string(f.Provider())+"/"+f.ToolName(), func(t *testing.T) {
			p, err := f.MapParams(map[string]interface{}{"command": "echo hi"})
			require.NoError(t, err)
			assert.Equal(t, BashExecute{Command: "echo hi"}, p)

			_, err = f.MapParams(map[string]interface{}{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, f.ToolName(), verr.Tool)
		})
	}
}

func TestFileFacades(t *testing.T) {
	t.Run("read with window", func(t *testing.T) {
		p, err := GeminiReadFile().MapParams(map[string]interface{}{"file_path": "/a.go", "offset": float64(10), "limit": float64(5)})
		require.NoError(t, err)
		off, lim := 10, 5
		assert.Equal(t, FileRead{FilePath: "/a.go", Offset: &off, Limit: &lim}, p)
	})

	t.Run("openai field names map to the same edit", func(t *testing.T) {
		claude, err := ClaudeEdit().MapParams(map[string]interface{}{"file_path": "/a", "old_string": "x", "new_string": "y"})
		require.NoError(t, err)
		openai, err := OpenAIEditFile().MapParams(map[string]interface{}{"path": "/a", "old_text": "x", "new_text": "y"})
		require.NoError(t, err)
		assert.Equal(t, claude, openai)
	})

	t.Run("write allows empty content", func(t *testing.T) {
		p, err := ZAIWriteFile().MapParams(map[string]interface{}{"file_path": "/a", "content": ""})
		require.NoError(t, err)
		assert.Equal(t, FileWrite{FilePath: "/a"}, p)
	})

	t.Run("edit requires old string", func(t *testing.T) {
		_, err := GeminiReplace().MapParams(map[string]interface{}{"file_path": "/a", "new_string": "y"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestSearchFacades(t *testing.T) {
	p, err := GeminiSearchFileContent().MapParams(map[string]interface{}{"pattern": "func", "dir_path": "pkg"})
	require.NoError(t, err)
	assert.Equal(t, SearchGrep{Pattern: "func", Path: strPtr("pkg")}, p)

	p, err = ZAIFindFiles().MapParams(map[string]interface{}{"pattern": "**/*.go"})
	require.NoError(t, err)
	assert.Equal(t, SearchGlob{Pattern: "**/*.go"}, p)
}

func TestWebFacades(t *testing.T) {
	tests := []struct {
		name     string
		facade   Facade
		args     map[string]interface{}
		expected Params
		wantErr  bool
	}{
		{
			name:     "claude search",
			facade:   ClaudeWebSearch(),
			args:     map[string]interface{}{"action_type": "search", "query": "golang"},
			expected: WebSearch{Query: "golang"},
		},
		{
			name:     "claude find in page",
			facade:   ClaudeWebSearch(),
			args:     map[string]interface{}{"action_type": "find_in_page", "url": "https://go.dev", "pattern": "Go"},
			expected: WebFindInPage{URL: "https://go.dev", Pattern: "Go"},
		},
		{
			name:     "claude screenshot",
			facade:   ClaudeWebSearch(),
			args:     map[string]interface{}{"action_type": "capture_screenshot", "url": "https://go.dev", "full_page": true},
			expected: WebCaptureScreenshot{URL: "https://go.dev", FullPage: true},
		},
		{
			name:    "claude unknown action",
			facade:  ClaudeWebSearch(),
			args:    map[string]interface{}{"action_type": "download"},
			wantErr: true,
		},
		{
			name:     "gemini search",
			facade:   GeminiGoogleWebSearch(),
			args:     map[string]interface{}{"query": "golang"},
			expected: WebSearch{Query: "golang"},
		},
		{
			name:     "gemini fetch",
			facade:   GeminiWebFetch(),
			args:     map[string]interface{}{"url": "https://go.dev/doc"},
			expected: WebOpenPage{URL: "https://go.dev/doc"},
		},
		{
			name:    "gemini fetch rejects scheme",
			facade:  GeminiWebFetch(),
			args:    map[string]interface{}{"url": "ftp://go.dev"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.facade.MapParams(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestBuiltinDefinitionsAreFlat(t *testing.T) {
	for _, f := range Builtin() {
		def := f.Definition()
		assert.Equal(t, f.ToolName(), def.Name)
		assert.NoError(t, ValidateFlat(def), def.Name)
	}
}

func TestParamsVariants(t *testing.T) {
	variants := []Params{
		LsList{}, BashExecute{},
		FileRead{}, FileWrite{}, FileEdit{},
		SearchGrep{}, SearchGlob{},
		WebSearch{}, WebOpenPage{}, WebFindInPage{}, WebCaptureScreenshot{},
	}

	seen := make(map[string]bool)
	for _, p := range variants {
		key := string(p.Family()) + "." + p.Operation()
		assert.False(t, seen[key], "duplicate operation %s", key)
		seen[key] = true
		p.isParams()
	}
	assert.Len(t, seen, 11)
}

func TestValidateFlat(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		ok     bool
	}{
		{"scalars", object(props{"a": str("a"), "b": boolean("b")}), true},
		{"array of scalars", object(props{"a": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}}), true},
		{"nested object", object(props{"a": map[string]interface{}{"type": "object"}}), false},
		{"array of objects", object(props{"a": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}}}), false},
		{"oneOf property", object(props{"a": map[string]interface{}{"oneOf": []interface{}{str("x")}}}), false},
		{"top level anyOf", map[string]interface{}{"type": "object", "anyOf": []interface{}{}}, false},
		{"not an object", map[string]interface{}{"type": "string"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlat(Definition{Name: "t", Parameters: tt.params})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotFlat)
			}
		})
	}
}

func TestWrapperDelegates(t *testing.T) {
	f := GeminiRunShellCommand()
	want := Result{Output: "hi\n", Metadata: map[string]interface{}{"exit_code": 0}}

	var got Params
	w, err := NewWrapper(f, BackendFunc(func(_ context.Context, p Params) (Result, error) {
		got = p
		return want, nil
	}))
	require.NoError(t, err)

	assert.Equal(t, "run_shell_command", w.Name())
	assert.Equal(t, f.Definition(), w.Definition())
	assert.Equal(t, Gemini, w.Provider())

	res, err := w.Call(context.Background(), map[string]interface{}{"command": "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, want, res)
	assert.Equal(t, BashExecute{Command: "echo hi"}, got)

	_, err = w.Call(context.Background(), map[string]interface{}{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewWrapperRequiresParts(t *testing.T) {
	_, err := NewWrapper(nil, &recordingBackend{})
	assert.Error(t, err)
	_, err = NewWrapper(GeminiListDirectory(), nil)
	assert.Error(t, err)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("Gemini")
	require.NoError(t, err)
	assert.Equal(t, Gemini, p)

	p, err = ParseProvider("anthropic")
	require.NoError(t, err)
	assert.Equal(t, Claude, p)

	_, err = ParseProvider("mistral")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
