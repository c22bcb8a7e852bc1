package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/codelet/pkg/coretools"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/session"
	"github.com/harun/codelet/pkg/toolexecutor"
)

// scriptedProvider replays canned responses and records every request
type scriptedProvider struct {
	mu       sync.Mutex
	steps    []func(ctx context.Context, req Request) (*Response, error)
	requests []Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Call(ctx context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	n := len(p.requests)
	var step func(context.Context, Request) (*Response, error)
	if n <= len(p.steps) {
		step = p.steps[n-1]
	} else {
		step = p.steps[len(p.steps)-1]
	}
	p.mu.Unlock()
	return step(ctx, req)
}

func (p *scriptedProvider) calls() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func reply(text string, calls ...ToolCall) func(context.Context, Request) (*Response, error) {
	return func(context.Context, Request) (*Response, error) {
		return &Response{Content: text, ToolCalls: calls, Usage: &TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
	}
}

func failWith(msg string) func(context.Context, Request) (*Response, error) {
	return func(context.Context, Request) (*Response, error) {
		return nil, errors.New(msg)
	}
}

func newTestRegistry(t *testing.T, provider Provider, agentCfg Config) *session.Registry {
	t.Helper()
	tools, err := coretools.New(coretools.Options{Logger: zerolog.Nop(), WorkspaceRoot: t.TempDir()})
	require.NoError(t, err)

	factory, err := NewRunnerFactory(FactoryConfig{
		Logger:    zerolog.Nop(),
		Providers: map[facade.Provider]Credentials{facade.Claude: {APIKey: "test-key"}},
		Agent:     agentCfg,
		Tools:     tools,
		NewProvider: func(context.Context, facade.Provider, Credentials) (Provider, error) {
			return provider, nil
		},
	})
	require.NoError(t, err)

	reg := session.NewRegistry(session.Config{Logger: zerolog.Nop(), NewRunner: factory, SilenceTimeout: time.Minute})
	t.Cleanup(reg.Close)
	return reg
}

func waitStatus(t *testing.T, reg *session.Registry, id string, want session.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := reg.Status(id)
		return err == nil && st == want
	}, 3*time.Second, 2*time.Millisecond, "session %s never reached %s", id, want)
}

func chunksOf(t *testing.T, reg *session.Registry, id string, kind session.ChunkKind) []session.Chunk {
	t.Helper()
	all, err := reg.BufferedOutput(id, 0)
	require.NoError(t, err)
	var out []session.Chunk
	for _, c := range all {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func fastRetries() Config {
	return Config{RetryBackoff: time.Millisecond}
}

func TestRunner_TextOnly(t *testing.T) {
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){reply("hello there")}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Provider: "claude", Prompt: "hi"})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusCompleted)

	texts := chunksOf(t, reg, id, session.ChunkText)
	require.Len(t, texts, 1)
	assert.Equal(t, "hello there", texts[0].Text)

	calls := provider.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultModels[facade.Claude], calls[0].Model)
	assert.Equal(t, []Message{{Role: "user", Content: "hi"}}, calls[0].Messages)
	assert.NotEmpty(t, calls[0].Tools)
	assert.Contains(t, calls[0].SystemPrompt, defaultSystemPrompt)
}

func TestRunner_HistoryAcrossPrompts(t *testing.T) {
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){reply("first"), reply("second")}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Prompt: "one"})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusCompleted)

	require.NoError(t, reg.SendInput(context.Background(), id, "two"))
	require.Eventually(t, func() bool { return len(provider.calls()) == 2 }, 2*time.Second, 2*time.Millisecond)
	waitStatus(t, reg, id, session.StatusCompleted)

	second := provider.calls()[1]
	assert.Equal(t, []Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "first"},
		{Role: "user", Content: "two"},
	}, second.Messages)
}

func TestRunner_ToolLoop(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "notes.txt")
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){
		reply("writing", ToolCall{Name: "Write", Parameters: map[string]interface{}{
			"file_path": target,
			"content":   "remember the milk",
		}}),
		reply("done"),
	}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Prompt: "take a note", WorkingDir: dir})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusCompleted)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(data))

	toolCalls := chunksOf(t, reg, id, session.ChunkToolCall)
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "Write", toolCalls[0].Tool)
	assert.NotEmpty(t, toolCalls[0].ToolCallID, "missing ids are generated")

	results := chunksOf(t, reg, id, session.ChunkToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, toolCalls[0].ToolCallID, results[0].ToolCallID)
	assert.Contains(t, results[0].Text, "Successfully wrote")

	calls := provider.calls()
	require.Len(t, calls, 2)
	msgs := calls[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, toolCalls[0].ToolCallID, msgs[1].ToolCalls[0].ID)
	assert.Equal(t, "tool", msgs[2].Role)
	assert.Equal(t, "Write", msgs[2].ToolName)
	assert.Equal(t, toolCalls[0].ToolCallID, msgs[2].ToolCallID)
}

func TestRunner_ToolFailureGoesBackToModel(t *testing.T) {
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){
		reply("", ToolCall{ID: "call_1", Name: "NoSuchTool", Parameters: map[string]interface{}{}}),
		reply("sorry"),
	}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Prompt: "go"})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusCompleted)

	calls := provider.calls()
	require.Len(t, calls, 2)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Error:")
}

func TestRunner_RetriesTransientErrors(t *testing.T) {
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){
		failWith("503 Service Unavailable"),
		failWith("rate limit exceeded"),
		reply("recovered"),
	}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Prompt: "hi"})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusCompleted)

	assert.Len(t, provider.calls(), 3)
	texts := chunksOf(t, reg, id, session.ChunkText)
	require.Len(t, texts, 1)
	assert.Equal(t, "recovered", texts[0].Text)
}

func TestRunner_PermanentErrorFails(t *testing.T) {
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){
		failWith("400 invalid request"),
	}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Prompt: "hi"})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusFailed)

	assert.Len(t, provider.calls(), 1)
	errs := chunksOf(t, reg, id, session.ChunkError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Text, "400 invalid request")
}

func TestRunner_MaxTurns(t *testing.T) {
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){
		reply("", ToolCall{Name: "LS", Parameters: map[string]interface{}{}}),
	}}
	cfg := fastRetries()
	cfg.MaxTurns = 2
	reg := newTestRegistry(t, provider, cfg)

	id, err := reg.Create(context.Background(), session.Options{Prompt: "loop", WorkingDir: t.TempDir()})
	require.NoError(t, err)
	waitStatus(t, reg, id, session.StatusFailed)

	assert.Len(t, provider.calls(), 2)
	errs := chunksOf(t, reg, id, session.ChunkError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Text, ErrMaxTurns.Error())
}

func TestRunner_InterruptDuringProviderCall(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){
		func(ctx context.Context, _ Request) (*Response, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}
	reg := newTestRegistry(t, provider, fastRetries())

	id, err := reg.Create(context.Background(), session.Options{Prompt: "wait"})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("provider was never called")
	}
	require.NoError(t, reg.Interrupt(context.Background(), id))
	waitStatus(t, reg, id, session.StatusInterrupted)
	assert.Len(t, provider.calls(), 1, "cancellation is not retried")
}

func TestNewRunner_Validation(t *testing.T) {
	executor := toolexecutor.New(toolexecutor.Config{Logger: zerolog.Nop()})
	provider := &scriptedProvider{steps: []func(context.Context, Request) (*Response, error){reply("x")}}

	tests := []struct {
		name string
		cfg  RunnerConfig
		want string
	}{
		{"no provider", RunnerConfig{Executor: executor, Model: "m"}, "provider is required"},
		{"no executor", RunnerConfig{Provider: provider, Model: "m"}, "tool executor is required"},
		{"no model", RunnerConfig{Provider: provider, Executor: executor}, "model cannot be empty"},
		{"bad temperature", RunnerConfig{Provider: provider, Executor: executor, Model: "m", Agent: Config{Temperature: 3}}, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunnerFactory_UnknownProvider(t *testing.T) {
	tools, err := coretools.New(coretools.Options{Logger: zerolog.Nop(), WorkspaceRoot: t.TempDir()})
	require.NoError(t, err)
	factory, err := NewRunnerFactory(FactoryConfig{Logger: zerolog.Nop(), Tools: tools})
	require.NoError(t, err)

	_, err = factory("s1", session.Options{Provider: "llama"})
	assert.ErrorIs(t, err, facade.ErrUnknownProvider)

	_, err = factory("s2", session.Options{Provider: "claude"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompactIfNeeded(t *testing.T) {
	r := &Runner{cfg: Config{ContextTokens: 10}.withDefaults(), logger: zerolog.Nop()}
	r.cfg.ContextTokens = 10

	var messages []Message
	for i := 0; i < 15; i++ {
		messages = append(messages,
			Message{Role: "user", Content: "a fairly long question to push the estimate"},
			Message{Role: "assistant", ToolCalls: []ToolCall{{ID: "c", Name: "LS"}}},
			Message{Role: "tool", Content: "listing", ToolCallID: "c"},
		)
	}

	kept := r.compactIfNeeded(messages, zerolog.Nop())
	require.NotEmpty(t, kept)
	assert.Less(t, len(kept), len(messages))
	assert.LessOrEqual(t, len(kept), recentMessages)
	assert.Equal(t, "user", kept[0].Role)
	assert.Equal(t, len(messages)-len(kept), r.compacted)

	short := messages[:3]
	assert.Equal(t, short, r.compactIfNeeded(short, zerolog.Nop()))
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("read tcp: ECONNRESET"), true},
		{errors.New("POST: 429 Too Many Requests"), true},
		{errors.New("Rate limit reached"), true},
		{errors.New("529 overloaded_error"), true},
		{errors.New("502 Bad Gateway"), true},
		{errors.New("401 unauthorized"), false},
		{errors.New("invalid tool schema"), false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
