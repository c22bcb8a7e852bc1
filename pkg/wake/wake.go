package wake

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Reason classifies why a wake was signaled
type Reason int32

const (
	// None means the wake has not been signaled in the current generation
	None Reason = iota
	// Interrupt is an explicit user or operator cancellation
	Interrupt
	// Timeout is a deadline expiry
	Timeout
)

// String returns the reason name used in logs and terminal events
func (r Reason) String() string {
	switch r {
	case Interrupt:
		return "interrupted"
	case Timeout:
		return "timed_out"
	default:
		return "none"
	}
}

// Err returns the sentinel error for the reason, or nil for None
func (r Reason) Err() error {
	switch r {
	case Interrupt:
		return ErrInterrupted
	case Timeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Wake is a resettable, sticky, broadcast cancellation signal.
type Wake struct {
	mu     sync.Mutex
	done   chan struct{}
	reason Reason
}

// New creates an armed wake
func New() *Wake {
	return &Wake{done: make(chan struct{})}
}

// Signal raises the wake. It reports whether this call was the one that fired it.
func (w *Wake) Signal(reason Reason) bool {
	if reason == None {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reason != None {
		return false
	}
	w.reason = reason
	close(w.done)
	return true
}

// Interrupt raises the wake with reason Interrupt
func (w *Wake) Interrupt() bool {
	return w.Signal(Interrupt)
}

// Done returns a channel closed once the current generation is signaled.
func (w *Wake) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Reason returns the reason of the current generation
func (w *Wake) Reason() Reason {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// Signaled reports whether the current generation has fired
func (w *Wake) Signaled() bool {
	return w.Reason() != None
}

// Err returns ErrInterrupted or ErrTimeout once signaled, nil otherwise
func (w *Wake) Err() error {
	return w.Reason().Err()
}

// Reset starts a new generation. It is a no-op when the wake has not fired,
// so a pending signal is never lost by a reset racing with it.
func (w *Wake) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reason == None {
		return
	}
	w.reason = None
	w.done = make(chan struct{})
}

// Context derives a context that is cancelled when the current generation
// fires. The cancellation cause is ErrInterrupted or ErrTimeout.
func (w *Wake) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancelCause(parent)
	done := w.Done()

	go func() {
		select {
		case <-done:
			cancel(w.Err())
		case <-ctx.Done():
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// Deadline arms a timer that raises the wake with reason Timeout after d.
// The returned stop function disarms it; a zero or negative d arms nothing.
func (w *Wake) Deadline(d time.Duration) (stop func() bool) {
	return w.Timer(d).Stop
}

// ReasonOf classifies a cancelled context. Contexts cancelled by a wake carry
// their reason as the cause; an expired context deadline counts as Timeout and
// any other cancellation counts as Interrupt.
func ReasonOf(ctx context.Context) Reason {
	if ctx == nil || ctx.Err() == nil {
		return None
	}

	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return Timeout
	}
	return Interrupt
}

// Await blocks until a value arrives on ch, ctx is done or the wake fires.
// The wake is checked first so a signal raised before the call is observed.
func Await[T any](ctx context.Context, w *Wake, ch <-chan T) (T, error) {
	var zero T

	done := w.Done()
	select {
	case <-done:
		return zero, w.Err()
	default:
	}

	select {
	case v := <-ch:
		return v, nil
	case <-done:
		return zero, w.Err()
	case <-ctx.Done():
		if r := ReasonOf(ctx); r == Timeout {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
