package toolexecutor

import (
	"context"
	"time"

	"github.com/harun/codelet/pkg/output"
	"github.com/harun/codelet/pkg/pause"
	"github.com/harun/codelet/pkg/wake"
)

// ExecutionContext provides runtime information for one tool execution
type ExecutionContext struct {
	SessionID  string
	WorkingDir string

	// Timeout overrides the executor default when positive
	Timeout time.Duration

	// Limits overrides the executor truncation limits when set
	Limits *output.Limits

	// Wake is the session's cancellation signal; nil means only ctx and the
	// deadline can end the execution early.
	Wake *wake.Wake

	// Gate is the session's pause gate, handed to tools through the context
	Gate *pause.Gate

	// Sink receives live chunks
	Sink output.Sink

	Policy *ToolPolicy
}

type execContextKey struct{}

// ContextWithExecContext attaches the execution context to a context.Context for tools.
func ContextWithExecContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, execContextKey{}, execCtx)
}

// ExecContextFromContext extracts the execution context from a context.Context.
func ExecContextFromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(execContextKey{}); v != nil {
		if execCtx, ok := v.(*ExecutionContext); ok {
			return execCtx
		}
	}
	return nil
}

// WorkingDirFromContext returns the execution's working directory, or "".
func WorkingDirFromContext(ctx context.Context) string {
	if execCtx := ExecContextFromContext(ctx); execCtx != nil {
		return execCtx.WorkingDir
	}
	return ""
}
