package pause

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/codelet/pkg/wake"
)

// Kind is the kind of pause a tool requests
type Kind string

const (
	// Continue pauses resume on a bare acknowledgment
	Continue Kind = "continue"
	// Confirm pauses carry a proposed action and need approve, deny or cancel
	Confirm Kind = "confirm"
)

// Response is the outcome delivered to a paused tool
type Response string

const (
	Resumed     Response = "resumed"
	Approved    Response = "approved"
	Denied      Response = "denied"
	Cancelled   Response = "cancelled"
	Interrupted Response = "interrupted"
)

// ParseResponse parses an operator-provided response string.
func ParseResponse(value string) (Response, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "resume", "resumed", "continue", "ok":
		return Resumed, nil
	case "approve", "approved", "y", "yes":
		return Approved, nil
	case "deny", "denied", "n", "no":
		return Denied, nil
	case "cancel", "cancelled", "canceled", "esc":
		return Cancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResponse, value)
	}
}

// Request describes a pause a tool wants to open.
type Request struct {
	Kind     Kind
	ToolName string
	Message  string
	Details  string

	// OnCancel, when set, runs if the pause is abandoned by an interrupt or
	// deadline instead of being resumed.
	OnCancel func()
}

// State is the externally visible pause state
type State struct {
	Kind     Kind      `json:"kind"`
	ToolName string    `json:"tool_name"`
	Message  string    `json:"message"`
	Details  string    `json:"details,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
}

// Gate is a single-slot pause point owned by one session.
type Gate struct {
	mu       sync.Mutex
	state    *State
	respCh   chan Response
	onCancel func()

	onChange func(*State)
}

// NewGate creates a gate. onChange is called with the new state after a pause
// opens and with nil after it closes; it may be nil.
func NewGate(onChange func(*State)) *Gate {
	return &Gate{onChange: onChange}
}

// Open publishes a pause and blocks until it is resumed, abandoned or ctx is done.
// A Clock attached to ctx is held for as long as the pause is open.
func (g *Gate) Open(ctx context.Context, req Request) (Response, error) {
	if req.Kind != Continue && req.Kind != Confirm {
		return "", fmt.Errorf("%w: unknown pause kind %q", ErrInvalidResponse, req.Kind)
	}

	g.mu.Lock()
	if g.state != nil {
		g.mu.Unlock()
		return "", ErrAlreadyPaused
	}
	state := &State{
		Kind:     req.Kind,
		ToolName: req.ToolName,
		Message:  req.Message,
		Details:  req.Details,
		OpenedAt: time.Now(),
	}
	ch := make(chan Response, 1)
	g.state = state
	g.respCh = ch
	g.onCancel = req.OnCancel
	g.mu.Unlock()

	g.notify(copyState(state))

	// time spent waiting on the operator is not charged to the tool
	if c := clockFrom(ctx); c != nil {
		c.Hold()
		defer c.Release()
	}

	select {
	case resp := <-ch:
		if resp == Interrupted {
			return Interrupted, wake.ErrInterrupted
		}
		return resp, nil
	case <-ctx.Done():
		if g.clear(ch) {
			g.notify(nil)
		}
		return Interrupted, wake.ReasonOf(ctx).Err()
	}
}

// Query returns a copy of the open pause, or nil when not paused.
func (g *Gate) Query() *State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyState(g.state)
}

// Paused reports whether a pause is open
func (g *Gate) Paused() bool {
	return g.Query() != nil
}

// Resume closes the pause and then delivers resp to the paused tool. The
// close is published first, so a pause the tool opens next is always
// announced after it.
func (g *Gate) Resume(resp Response) error {
	g.mu.Lock()
	if g.state == nil {
		g.mu.Unlock()
		return ErrNotPaused
	}

	normalized, err := normalize(g.state.Kind, resp)
	if err != nil {
		g.mu.Unlock()
		return err
	}

	ch := g.respCh
	g.state = nil
	g.respCh = nil
	g.onCancel = nil
	g.mu.Unlock()

	g.notify(nil)
	ch <- normalized
	return nil
}

// Abandon cancels an open pause as interrupted. It runs the request's
// OnCancel hook and reports whether a pause was open.
func (g *Gate) Abandon() bool {
	g.mu.Lock()
	ch := g.respCh
	g.mu.Unlock()
	if ch == nil {
		return false
	}

	if !g.clear(ch) {
		return false
	}
	g.notify(nil)
	ch <- Interrupted
	return true
}

// clear closes the pause bound to ch and runs its cancel hook. It returns
// false when that pause was already closed by someone else.
func (g *Gate) clear(ch chan Response) bool {
	g.mu.Lock()
	if g.respCh != ch {
		g.mu.Unlock()
		return false
	}
	hook := g.onCancel
	g.state = nil
	g.respCh = nil
	g.onCancel = nil
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true
}

func (g *Gate) notify(state *State) {
	if g.onChange != nil {
		g.onChange(state)
	}
}

func normalize(kind Kind, resp Response) (Response, error) {
	switch kind {
	case Continue:
		switch resp {
		case Resumed, Approved:
			return Resumed, nil
		case Cancelled:
			return Cancelled, nil
		}
	case Confirm:
		switch resp {
		case Approved, Denied, Cancelled:
			return resp, nil
		}
	}
	return "", fmt.Errorf("%w: %q for %s pause", ErrInvalidResponse, resp, kind)
}

func copyState(s *State) *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
