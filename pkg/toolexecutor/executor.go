package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/codelet/internal/observability"
	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/output"
	"github.com/harun/codelet/pkg/pause"
	"github.com/harun/codelet/pkg/wake"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultTimeout bounds a tool execution when neither the executor nor the
// execution context sets one.
const DefaultTimeout = 120 * time.Second

// Outcome is how a tool execution ended
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeFailed      Outcome = "failed"
)

// ToolResult is the finalized result of one execution
type ToolResult struct {
	Tool         string                 `json:"tool"`
	Outcome      Outcome                `json:"outcome"`
	Output       string                 `json:"output,omitempty"`
	Truncated    bool                   `json:"truncated,omitempty"`
	OmittedChars int                    `json:"omitted_chars,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Duration     time.Duration          `json:"duration"`
	Chunks       int                    `json:"chunks"`

	err error
}

// Success reports whether the tool completed normally
func (r ToolResult) Success() bool {
	return r.Outcome == OutcomeCompleted
}

// Err returns the classified error for a non-completed result. It matches
// wake.ErrInterrupted, wake.ErrTimeout, ErrToolNotFound or ErrToolNotAllowed
// with errors.Is where applicable.
func (r ToolResult) Err() error {
	if r.Outcome == OutcomeCompleted {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Error)
}

// Content renders the result as the text handed back to the model
func (r ToolResult) Content() string {
	switch r.Outcome {
	case OutcomeCompleted:
		return r.Output
	case OutcomeInterrupted:
		return joinNonEmpty(r.Output, "[Tool execution interrupted by user]")
	case OutcomeTimedOut:
		return joinNonEmpty(r.Output, "["+r.Error+"]")
	default:
		return joinNonEmpty(r.Output, "Error: "+r.Error)
	}
}

func joinNonEmpty(out, notice string) string {
	if strings.TrimSpace(out) == "" {
		return notice
	}
	return strings.TrimRight(out, "\n") + "\n\n" + notice
}

// Config configures an Executor
type Config struct {
	Logger         zerolog.Logger
	DefaultTimeout time.Duration
	Limits         output.Limits
}

// Executor holds a session's tools and runs them under cancellation.
type Executor struct {
	mu             sync.RWMutex
	tools          map[string]facade.Tool
	logger         zerolog.Logger
	defaultTimeout time.Duration
	limits         output.Limits
}

// New creates an Executor. Zero config fields take package defaults.
func New(cfg Config) *Executor {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limits := cfg.Limits
	if limits.MaxOutputChars <= 0 || limits.MaxLineLength <= 0 {
		defaults := output.DefaultLimits()
		if limits.MaxOutputChars <= 0 {
			limits.MaxOutputChars = defaults.MaxOutputChars
		}
		if limits.MaxLineLength <= 0 {
			limits.MaxLineLength = defaults.MaxLineLength
		}
	}

	return &Executor{
		tools:          make(map[string]facade.Tool),
		logger:         cfg.Logger.With().Str("component", "toolexecutor").Logger(),
		defaultTimeout: timeout,
		limits:         limits,
	}
}

// Register adds tools. It fails on the first duplicate name and registers nothing.
func (e *Executor) Register(tools ...facade.Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return fmt.Errorf("tool name cannot be empty")
		}
		if _, exists := e.tools[t.Name()]; exists || seen[t.Name()] {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
		}
		seen[t.Name()] = true
	}

	for _, t := range tools {
		e.tools[t.Name()] = t
		e.logger.Debug().Str("tool", t.Name()).Msg("Tool registered")
	}
	return nil
}

// Unregister removes a tool
func (e *Executor) Unregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tools, name)
}

// Tool returns a registered tool by name
func (e *Executor) Tool(name string) (facade.Tool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tools[name]
	return t, ok
}

// Names returns registered tool names, sorted
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions the policy allows, sorted by name
func (e *Executor) Definitions(policy *ToolPolicy) []facade.Definition {
	names := policy.Filter(e.Names())

	e.mu.RLock()
	defer e.mu.RUnlock()

	defs := make([]facade.Definition, 0, len(names))
	for _, name := range names {
		if t, ok := e.tools[name]; ok {
			defs = append(defs, t.Definition())
		}
	}
	return defs
}

// SetLimits replaces the default truncation limits for later executions
func (e *Executor) SetLimits(limits output.Limits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits = limits
}

// Limits returns the default truncation limits
func (e *Executor) Limits() output.Limits {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

type callResult struct {
	res facade.Result
	err error
}

// Execute runs a tool to a terminal outcome. It returns as soon as the
// session wake fires, the deadline expires or ctx is done, even when the
// tool ignores its context; the output streamed so far is kept as the
// partial result.
func (e *Executor) Execute(ctx context.Context, toolName string, args map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if execCtx == nil {
		execCtx = &ExecutionContext{}
	}

	startTime := time.Now()

	ctx, span := tracing.StartSpan(
		ctx,
		"codelet.toolexecutor",
		"toolexecutor.execute",
		attribute.String("tool", toolName),
		attribute.String("session_id", execCtx.SessionID),
	)
	defer span.End()

	if execCtx.SessionID != "" && tracing.GetSessionID(ctx) == "" {
		ctx = tracing.WithSessionID(ctx, execCtx.SessionID)
	}
	logger := tracing.LoggerFromContext(ctx, e.logger).With().Str("tool", toolName).Logger()

	result := e.run(ctx, toolName, args, execCtx, logger)
	result.Duration = time.Since(startTime)

	if result.Outcome == OutcomeFailed {
		tracing.RecordError(span, result.Err())
	}
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))

	event := logger.Debug()
	if result.Outcome == OutcomeFailed {
		event = logger.Error().Str("error", result.Error)
	}
	event.
		Str("outcome", string(result.Outcome)).
		Dur("duration", result.Duration).
		Bool("truncated", result.Truncated).
		Int("chunks", result.Chunks).
		Msg("Tool execution finished")

	observability.RecordToolExecution(toolName, result.Duration, string(result.Outcome), result.Truncated)
	observability.RecordToolAudit(ctx, toolName, execCtx.SessionID, string(result.Outcome), map[string]interface{}{
		"duration_ms": result.Duration.Milliseconds(),
		"truncated":   result.Truncated,
	})

	return result
}

func (e *Executor) run(ctx context.Context, toolName string, args map[string]interface{}, execCtx *ExecutionContext, logger zerolog.Logger) ToolResult {
	if !execCtx.Policy.IsToolAllowed(toolName) {
		logger.Warn().Msg("Tool execution blocked by policy")
		return failed(toolName, fmt.Errorf("%w: %s", ErrToolNotAllowed, toolName), map[string]interface{}{
			"policy_violation": true,
		})
	}

	tool, ok := e.Tool(toolName)
	if !ok {
		return failed(toolName, fmt.Errorf("%w: %s", ErrToolNotFound, toolName), nil)
	}

	limits := e.Limits()
	if execCtx.Limits != nil {
		limits = *execCtx.Limits
	}
	timeout := e.defaultTimeout
	if execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	streamer := output.NewStreamer(execCtx.Sink, limits)

	// The session wake carries interrupts. The deadline gets its own wake
	// layered underneath so that expiring it leaves the session wake untouched.
	runCtx := ctx
	if execCtx.Wake != nil {
		var cancelSession context.CancelFunc
		runCtx, cancelSession = execCtx.Wake.Context(runCtx)
		defer cancelSession()
	}
	deadline := wake.New()
	timer := deadline.Timer(timeout)
	defer timer.Stop()
	runCtx, cancelRun := deadline.Context(runCtx)
	defer cancelRun()
	runCtx = pause.WithClock(runCtx, timer)

	runCtx = output.WithStreamer(runCtx, streamer)
	if execCtx.Gate != nil {
		runCtx = pause.WithGate(runCtx, execCtx.Gate)
	}
	runCtx = ContextWithExecContext(runCtx, execCtx)

	logger.Debug().Dur("timeout", timeout).Msg("Executing tool")

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		res, err := tool.Call(runCtx, args)
		done <- callResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if runCtx.Err() != nil {
				return e.cancelled(toolName, runCtx, streamer, timeout)
			}
			var toolErr *ToolExecutionError
			if errors.As(r.err, &toolErr) && streamer.Chunks() == 0 {
				streamer.WriteChunk(toolErr.Output, false)
			}
			res := failed(toolName, r.err, r.res.Metadata)
			applyFinal(&res, streamer)
			return res
		}

		// Tools that stream own their output; the returned text only fills in
		// for tools that never wrote a chunk.
		if streamer.Chunks() == 0 {
			streamer.WriteChunk(r.res.Output, false)
		}
		res := ToolResult{Tool: toolName, Outcome: OutcomeCompleted, Metadata: r.res.Metadata}
		applyFinal(&res, streamer)
		return res

	case <-runCtx.Done():
		return e.cancelled(toolName, runCtx, streamer, timeout)
	}
}

func (e *Executor) cancelled(toolName string, runCtx context.Context, streamer *output.Streamer, timeout time.Duration) ToolResult {
	res := ToolResult{Tool: toolName}
	switch wake.ReasonOf(runCtx) {
	case wake.Timeout:
		res.Outcome = OutcomeTimedOut
		res.Error = fmt.Sprintf("Command timed out after %s", timeout)
		res.err = fmt.Errorf("tool %s: %w", toolName, wake.ErrTimeout)
	default:
		res.Outcome = OutcomeInterrupted
		res.Error = "interrupted"
		res.err = fmt.Errorf("tool %s: %w", toolName, wake.ErrInterrupted)
	}
	applyFinal(&res, streamer)
	return res
}

func failed(toolName string, err error, metadata map[string]interface{}) ToolResult {
	return ToolResult{
		Tool:     toolName,
		Outcome:  OutcomeFailed,
		Error:    err.Error(),
		Metadata: metadata,
		err:      err,
	}
}

func applyFinal(res *ToolResult, streamer *output.Streamer) {
	final := streamer.Finalize()
	res.Output = final.Output
	res.Truncated = final.Truncated
	res.OmittedChars = final.OmittedChars
	res.Chunks = streamer.Chunks()
}
