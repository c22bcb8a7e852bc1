package output

import "context"

type streamerKey struct{}

// WithStreamer attaches the execution's streamer to ctx
func WithStreamer(ctx context.Context, s *Streamer) context.Context {
	return context.WithValue(ctx, streamerKey{}, s)
}

// FromContext returns the streamer attached to ctx, or nil
func FromContext(ctx context.Context) *Streamer {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(streamerKey{}).(*Streamer)
	return s
}
