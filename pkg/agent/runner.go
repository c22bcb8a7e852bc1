package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/codelet/internal/observability"
	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/session"
	"github.com/harun/codelet/pkg/toolexecutor"
)

// ErrMaxTurns is returned when the model keeps calling tools past the limit
var ErrMaxTurns = errors.New("maximum tool execution turns exceeded")

// interruptedNotice stands in for the result of a tool call that never ran
const interruptedNotice = "[Tool execution interrupted by user]"

// recentMessages is how much history survives a compaction
const recentMessages = 20

// Runner drives one session's conversation: it calls the provider, runs the
// requested tools through the session's executor and keeps the history.
type Runner struct {
	provider Provider
	executor *toolexecutor.Executor
	model    string
	cfg      Config
	logger   zerolog.Logger

	mu        sync.Mutex
	history   []Message
	compacted int
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Provider Provider
	Executor *toolexecutor.Executor
	Model    string
	Agent    Config
	Logger   zerolog.Logger
}

// NewRunner creates a runner for one session
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	agentCfg := cfg.Agent.withDefaults()
	if agentCfg.Temperature < 0 || agentCfg.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}

	return &Runner{
		provider: cfg.Provider,
		executor: cfg.Executor,
		model:    cfg.Model,
		cfg:      agentCfg,
		logger: cfg.Logger.With().
			Str("component", "agent").
			Str("provider", cfg.Provider.Name()).
			Logger(),
	}, nil
}

// History returns a copy of the conversation so far
func (r *Runner) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}

// RunTurn answers one prompt, looping through tool calls until the model
// replies with text only. An interrupt ends the loop with the context error;
// tool calls that never ran are answered with an interruption notice so the
// history stays consistent for the next prompt.
func (r *Runner) RunTurn(ctx context.Context, turn *session.Turn) (err error) {
	ctx = tracing.NewRunContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "codelet.agent", "agent.turn",
		attribute.String("session_id", turn.SessionID()),
		attribute.String("provider", r.provider.Name()),
		attribute.String("model", r.model),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	r.mu.Lock()
	messages := make([]Message, len(r.history), len(r.history)+1)
	copy(messages, r.history)
	r.mu.Unlock()
	messages = append(messages, Message{Role: "user", Content: turn.Input})

	defer func() {
		r.mu.Lock()
		r.history = messages
		r.mu.Unlock()
		if err != nil && ctx.Err() == nil {
			tracing.RecordError(span, err)
		}
	}()

	tools := r.executor.Definitions(turn.Policy())

	for i := 0; i < r.cfg.MaxTurns; i++ {
		if ctx.Err() != nil {
			return cause(ctx)
		}

		messages = r.compactIfNeeded(messages, logger)
		response, err := r.callWithRetry(ctx, messages, tools, logger)
		if err != nil {
			if ctx.Err() != nil {
				return cause(ctx)
			}
			return err
		}

		turn.EmitText(response.Content)
		if len(response.ToolCalls) == 0 {
			messages = append(messages, Message{Role: "assistant", Content: response.Content})
			return nil
		}

		calls := make([]ToolCall, len(response.ToolCalls))
		for j, tc := range response.ToolCalls {
			if tc.ID == "" {
				tc.ID = "call_" + gonanoid.Must(16)
			}
			if tc.Parameters == nil {
				tc.Parameters = map[string]interface{}{}
			}
			calls[j] = tc
		}
		messages = append(messages, Message{Role: "assistant", Content: response.Content, ToolCalls: calls})

		for j, tc := range calls {
			if ctx.Err() != nil {
				for _, skipped := range calls[j:] {
					messages = append(messages, toolMessage(skipped, interruptedNotice))
				}
				return cause(ctx)
			}
			messages = append(messages, toolMessage(tc, r.executeTool(ctx, turn, tc)))
		}
	}

	logger.Warn().Int("max_turns", r.cfg.MaxTurns).Msg("Tool loop limit reached")
	return fmt.Errorf("%w (%d)", ErrMaxTurns, r.cfg.MaxTurns)
}

func (r *Runner) executeTool(ctx context.Context, turn *session.Turn, tc ToolCall) string {
	args, err := json.Marshal(tc.Parameters)
	if err != nil {
		args = []byte("{}")
	}
	turn.EmitToolCall(tc.ID, tc.Name, string(args))

	res := r.executor.Execute(ctx, tc.Name, tc.Parameters, turn.ExecutionContext(tc.ID, tc.Name))
	turn.ToolFinished(tc.ID, res)
	return res.Content()
}

func toolMessage(tc ToolCall, content string) Message {
	return Message{Role: "tool", Content: content, ToolCallID: tc.ID, ToolName: tc.Name}
}

// cause prefers the wake reason (interrupt, timeout) over plain cancellation
func cause(ctx context.Context) error {
	if c := context.Cause(ctx); c != nil {
		return c
	}
	return ctx.Err()
}

// callWithRetry calls the provider with exponential backoff retry
func (r *Runner) callWithRetry(ctx context.Context, messages []Message, tools []facade.Definition, logger zerolog.Logger) (*Response, error) {
	var lastErr error
	delay := r.cfg.RetryBackoff

	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		response, err := r.call(ctx, messages, tools)
		if err == nil {
			return response, nil
		}
		lastErr = err

		// Don't retry on permanent errors
		if !IsRetryableError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt == r.cfg.MaxRetries-1 {
			break
		}

		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after provider error")

		select {
		case <-ctx.Done():
			return nil, cause(ctx)
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.cfg.MaxRetries, lastErr)
}

func (r *Runner) call(ctx context.Context, messages []Message, tools []facade.Definition) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "codelet.agent", "agent.provider_call",
		attribute.String("provider", r.provider.Name()),
		attribute.Int("messages", len(messages)),
	)
	defer span.End()

	r.mu.Lock()
	compacted := r.compacted
	r.mu.Unlock()
	system := r.cfg.SystemPrompt
	if compacted > 0 {
		system = fmt.Sprintf("%s\n\n[Previous conversation summary: %d earlier messages were dropped]", system, compacted)
	}

	start := time.Now()
	response, err := r.provider.Call(ctx, Request{
		Model:        r.model,
		Messages:     messages,
		Tools:        tools,
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
		SystemPrompt: system,
	})
	observability.RecordProviderCall(r.provider.Name(), time.Since(start), err == nil)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if response.Usage != nil {
		span.SetAttributes(
			attribute.Int("input_tokens", response.Usage.InputTokens),
			attribute.Int("output_tokens", response.Usage.OutputTokens),
		)
	}
	return response, nil
}

// compactIfNeeded drops the oldest messages once the estimate passes the
// context budget. The kept history always starts on a user message, so
// every kept tool result still follows the call that produced it.
func (r *Runner) compactIfNeeded(messages []Message, logger zerolog.Logger) []Message {
	tokenCount := EstimateTokens(messages)
	if tokenCount <= r.cfg.ContextTokens || len(messages) <= recentMessages {
		return messages
	}

	cut := len(messages) - recentMessages
	for cut < len(messages) && messages[cut].Role != "user" {
		cut++
	}
	if cut >= len(messages) {
		return messages
	}

	logger.Info().
		Int("token_count", tokenCount).
		Int("context_tokens", r.cfg.ContextTokens).
		Int("dropped", cut).
		Msg("Compacting context")

	r.mu.Lock()
	r.compacted += cut
	r.mu.Unlock()

	kept := make([]Message, len(messages)-cut)
	copy(kept, messages[cut:])
	return kept
}
