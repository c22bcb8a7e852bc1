package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/harun/codelet/internal/tracing"
)

// DefaultSilenceTimeout triggers a watcher evaluation when the parent has
// produced observations but no breakpoint for this long.
const DefaultSilenceTimeout = 5 * time.Second

// ErrNoParent is returned when injecting from a session that watches nothing
var ErrNoParent = errors.New("watcher has no parent session")

// AddWatcher makes watcherID observe parentID. The watcher needs a role.
func (r *Registry) AddWatcher(ctx context.Context, parentID, watcherID string) (err error) {
	defer func() {
		r.recordOp(ctx, "add_watcher", watcherID, err, map[string]interface{}{"parent": parentID})
	}()

	if _, err := r.get(parentID); err != nil {
		return err
	}
	w, err := r.get(watcherID)
	if err != nil {
		return err
	}
	if w.Role() == nil {
		return validationError("role", "session %s has no watcher role set", watcherID)
	}
	return r.watch(parentID, w)
}

// RemoveWatcher detaches a watcher from its parent
func (r *Registry) RemoveWatcher(ctx context.Context, watcherID string) (err error) {
	defer func() { r.recordOp(ctx, "remove_watcher", watcherID, err, nil) }()

	if _, err := r.get(watcherID); err != nil {
		return err
	}
	r.unwatch(watcherID)
	return nil
}

// Watchers lists the watchers of a session
func (r *Registry) Watchers(parentID string) ([]string, error) {
	if _, err := r.get(parentID); err != nil {
		return nil, err
	}
	return r.graph.Watchers(parentID), nil
}

// Parent returns the session a watcher observes
func (r *Registry) Parent(watcherID string) (string, error) {
	if _, err := r.get(watcherID); err != nil {
		return "", err
	}
	parent, ok := r.graph.Parent(watcherID)
	if !ok {
		return "", ErrNoParent
	}
	return parent, nil
}

// WatcherInject queues a message from a supervisor watcher on its parent,
// prefixed with the watcher's role and id. Peers observe only.
func (r *Registry) WatcherInject(ctx context.Context, watcherID, message string) (err error) {
	defer func() { r.recordOp(ctx, "watcher_inject", watcherID, err, nil) }()

	if strings.TrimSpace(message) == "" {
		return validationError("message", "message cannot be empty")
	}
	w, err := r.get(watcherID)
	if err != nil {
		return err
	}
	role := w.Role()
	if role == nil {
		return validationError("role", "session %s has no watcher role set", watcherID)
	}
	if role.Authority != AuthoritySupervisor {
		return validationError("authority", "peer watchers cannot inject into their parent")
	}
	parentID, ok := r.graph.Parent(watcherID)
	if !ok {
		return ErrNoParent
	}
	parent, err := r.get(parentID)
	if err != nil {
		return err
	}

	return parent.enqueue(input{
		text: FormatWatcherInput(role, watcherID, message),
		kind: ChunkWatcherInput,
	})
}

func (r *Registry) watch(parentID string, w *Session) error {
	if err := r.graph.Add(parentID, w.id); err != nil {
		return err
	}
	parent, err := r.get(parentID)
	if err != nil {
		r.graph.Remove(w.id)
		return err
	}

	ch, cancel := parent.subscribe()
	r.mu.Lock()
	r.watchSubs[w.id] = cancel
	r.mu.Unlock()

	go r.observe(parentID, w, ch)

	r.logger.Info().Str("parent", parentID).Str("watcher", w.id).Msg("Watcher attached")
	return nil
}

func (r *Registry) unwatch(watcherID string) {
	r.graph.Remove(watcherID)
	r.stopObserving(watcherID)
}

func (r *Registry) stopObserving(watcherID string) {
	r.mu.Lock()
	cancel, ok := r.watchSubs[watcherID]
	delete(r.watchSubs, watcherID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// observe buffers parent output and queues an evaluation on the watcher at
// each breakpoint, or after a stretch of silence.
func (r *Registry) observe(parentID string, w *Session, ch <-chan Chunk) {
	logger := r.logger.With().Str("parent", parentID).Str("watcher", w.id).Logger()
	silence := r.cfg.SilenceTimeout
	if silence <= 0 {
		silence = DefaultSilenceTimeout
	}

	var buf []Chunk
	timer := time.NewTimer(silence)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		role := w.Role()
		if role == nil {
			buf = nil
			return
		}
		ids := make([]string, len(buf))
		for i, c := range buf {
			ids[i] = c.CorrelationID
		}
		prompt := FormatEvaluationPrompt(role, buf)
		buf = nil

		if err := w.enqueue(input{text: prompt, observed: ids}); err != nil {
			logger.Warn().Err(err).Msg("Dropped watcher evaluation")
		}
	}

	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return
			}
			switch c.Kind {
			case ChunkText, ChunkToolCall, ChunkToolResult:
				buf = append(buf, c)
				timer.Reset(silence)
			}
			if c.Breakpoint() {
				timer.Stop()
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

// onTurnEnd handles a watcher's finished evaluation turn.
func (r *Registry) onTurnEnd(s *Session, in input, text string) {
	if len(in.observed) == 0 {
		return
	}
	role := s.Role()
	if role == nil {
		return
	}

	inter := ParseInterjection(text)
	if inter == nil {
		return
	}

	ctx := tracing.WithSessionID(context.Background(), s.id)
	logger := r.logger.With().Str("watcher", s.id).Bool("urgent", inter.Urgent).Logger()

	if !role.AutoInject || role.Authority != AuthoritySupervisor {
		logger.Info().Msg("Watcher has pending interjection")
		s.emit(Chunk{Kind: ChunkPendingInjection, Text: inter.Content, Urgent: inter.Urgent})
		return
	}

	if inter.Urgent {
		if parentID, ok := r.graph.Parent(s.id); ok {
			_ = r.Interrupt(ctx, parentID)
		}
	}
	if err := r.WatcherInject(ctx, s.id, inter.Content); err != nil {
		logger.Error().Err(err).Msg("Failed to auto-inject from watcher")
		return
	}
	logger.Info().Msg("Watcher auto-injected to parent")
}
