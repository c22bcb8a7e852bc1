package pause

import "context"

type gateKey struct{}

type clockKey struct{}

// Clock is a deadline that stands still while a pause is open.
// *wake.Timer implements it.
type Clock interface {
	Hold()
	Release()
}

// WithClock attaches the tool's deadline so pauses opened under ctx hold it
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

func clockFrom(ctx context.Context) Clock {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(clockKey{}).(Clock)
	return c
}

// WithGate attaches a session's gate to ctx for tools running in that session
func WithGate(ctx context.Context, g *Gate) context.Context {
	return context.WithValue(ctx, gateKey{}, g)
}

// FromContext returns the gate attached to ctx, or nil
func FromContext(ctx context.Context) *Gate {
	if ctx == nil {
		return nil
	}
	g, _ := ctx.Value(gateKey{}).(*Gate)
	return g
}

// Ask opens a pause on the gate carried by ctx. Without a gate there is no
// one to ask, so Continue pauses resolve to Resumed and Confirm pauses to
// Approved.
func Ask(ctx context.Context, req Request) (Response, error) {
	g := FromContext(ctx)
	if g == nil {
		if req.Kind == Confirm {
			return Approved, nil
		}
		return Resumed, nil
	}
	return g.Open(ctx, req)
}
