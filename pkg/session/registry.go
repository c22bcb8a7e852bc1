package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/codelet/internal/observability"
	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/pause"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxSessions caps concurrent sessions when Config leaves it unset
const DefaultMaxSessions = 10

// Config configures a Registry
type Config struct {
	Logger    zerolog.Logger
	NewRunner RunnerFactory

	// MaxSessions caps live sessions; zero uses DefaultMaxSessions and a
	// negative value removes the cap.
	MaxSessions int

	// HistoryLimit is how many chunks each session retains
	HistoryLimit int

	// InputQueue is the per-session queue depth for pending prompts
	InputQueue int

	// SilenceTimeout triggers a watcher evaluation without a breakpoint
	SilenceTimeout time.Duration
}

// Registry owns every live session and the watch graph between them. Its
// lock covers map access only; per-session operations lock the session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	graph     *WatchGraph
	watchSubs map[string]func()

	cfg    Config
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	ctx, cancel := context.WithCancel(context.Background())
	observability.EnsureRegistered()

	return &Registry{
		sessions:  make(map[string]*Session),
		graph:     NewWatchGraph(),
		watchSubs: make(map[string]func()),
		cfg:       cfg,
		logger:    cfg.Logger.With().Str("component", "session").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *Registry) get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return s, nil
}

// Create starts a new session. With a prompt it begins running at once;
// without one it waits idle for SendInput. Options.Parent makes it a watcher.
func (r *Registry) Create(ctx context.Context, opts Options) (id string, err error) {
	ctx, span := tracing.StartSpan(ctx, "codelet.session", "session.create",
		attribute.String("provider", opts.Provider),
	)
	defer span.End()
	defer func() { r.recordOp(ctx, "create", id, err, nil) }()

	if opts.Parent != "" && opts.Role == nil {
		return "", validationError("role", "a watcher session needs a role")
	}
	if opts.Policy != nil {
		if err := opts.Policy.Validate(); err != nil {
			return "", validationError("policy", "%v", err)
		}
	}
	if opts.Parent != "" {
		if _, err := r.get(opts.Parent); err != nil {
			return "", err
		}
	}

	id = uuid.New().String()
	var runner Runner
	if r.cfg.NewRunner != nil {
		runner, err = r.cfg.NewRunner(id, opts)
		if err != nil {
			tracing.RecordError(span, err)
			return "", fmt.Errorf("create runner: %w", err)
		}
	}

	s := newSession(sessionConfig{
		id:           id,
		opts:         opts,
		runner:       runner,
		logger:       r.logger,
		historyLimit: r.cfg.HistoryLimit,
		inputQueue:   r.cfg.InputQueue,
		onTurnEnd:    r.onTurnEnd,
	})

	r.mu.Lock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return "", fmt.Errorf("%w (%d)", ErrSessionLimit, r.cfg.MaxSessions)
	}
	r.sessions[id] = s
	r.order = append(r.order, id)
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetActiveSessions(count)
	s.start(r.ctx)

	if opts.Parent != "" {
		if err := r.watch(opts.Parent, s); err != nil {
			r.remove(id)
			s.close()
			return "", err
		}
	}

	if strings.TrimSpace(opts.Prompt) != "" {
		if err := s.SendInput(opts.Prompt); err != nil {
			return id, err
		}
	}

	span.SetAttributes(attribute.String("session_id", id))
	logger := tracing.LoggerFromContext(ctx, r.logger)
	logger.Info().
		Str("session_id", id).
		Str("provider", opts.Provider).
		Str("parent", opts.Parent).
		Msg("Session created")
	return id, nil
}

// Status returns a session's current status
func (r *Registry) Status(id string) (Status, error) {
	s, err := r.get(id)
	if err != nil {
		return "", err
	}
	return s.Status(), nil
}

// Info summarizes one session
func (r *Registry) Info(id string) (Info, error) {
	s, err := r.get(id)
	if err != nil {
		return Info{}, err
	}
	info := s.info()
	info.Parent, _ = r.graph.Parent(id)
	info.Watchers = r.graph.Watchers(id)
	return info, nil
}

// List summarizes every session in creation order
func (r *Registry) List() []Info {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		if info, err := r.Info(id); err == nil {
			infos = append(infos, info)
		}
	}
	return infos
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Interrupt stops the session's in-flight turn. Other sessions are unaffected
// and interrupting an idle session is a no-op.
func (r *Registry) Interrupt(ctx context.Context, id string) (err error) {
	defer func() { r.recordOp(ctx, "interrupt", id, err, nil) }()

	s, err := r.get(id)
	if err != nil {
		return err
	}
	if s.Interrupt() {
		logger := tracing.LoggerFromContext(ctx, r.logger)
		logger.Info().Str("session_id", id).Msg("Session interrupted")
	}
	return nil
}

// PauseQuery returns the open pause, or nil when the session is not paused.
func (r *Registry) PauseQuery(id string) (*pause.State, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return s.PauseState(), nil
}

// Resume answers a paused session. Continue pauses accept Resumed or
// Cancelled; Confirm pauses accept Approved, Denied or Cancelled.
func (r *Registry) Resume(ctx context.Context, id string, resp pause.Response) (err error) {
	defer func() {
		r.recordOp(ctx, "resume", id, err, map[string]interface{}{"response": string(resp)})
	}()

	s, err := r.get(id)
	if err != nil {
		return err
	}
	if err := s.Resume(resp); err != nil {
		return err
	}
	logger := tracing.LoggerFromContext(ctx, r.logger)
	logger.Info().
		Str("session_id", id).
		Str("response", string(resp)).
		Msg("Session resumed")
	return nil
}

// SendInput queues a prompt for the session
func (r *Registry) SendInput(ctx context.Context, id, text string) (err error) {
	defer func() { r.recordOp(ctx, "send_input", id, err, nil) }()

	s, err := r.get(id)
	if err != nil {
		return err
	}
	return s.SendInput(text)
}

// SetRole assigns a watcher role. An invalid name or authority leaves the
// previous role in place.
func (r *Registry) SetRole(ctx context.Context, id, name string, description *string, authority string, opts ...RoleOption) (err error) {
	defer func() {
		r.recordOp(ctx, "set_role", id, err, map[string]interface{}{"role": name, "authority": authority})
	}()

	s, err := r.get(id)
	if err != nil {
		return err
	}
	role, err := NewRole(name, description, authority)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(role)
	}
	s.setRole(role)
	return nil
}

// GetRole returns the session's role, nil when unset
func (r *Registry) GetRole(id string) (*Role, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return s.Role(), nil
}

// ClearRole removes the session's role
func (r *Registry) ClearRole(ctx context.Context, id string) (err error) {
	defer func() { r.recordOp(ctx, "clear_role", id, err, nil) }()

	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.setRole(nil)
	return nil
}

// Attach makes obs the session's live observer, replacing any previous one.
func (r *Registry) Attach(id string, obs Observer) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	if obs == nil {
		return validationError("observer", "observer cannot be nil")
	}
	s.attach(obs)
	return nil
}

// Detach removes the live observer. The session keeps running.
func (r *Registry) Detach(id string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.detach()
	return nil
}

// Subscribe streams future chunks of a session until cancel is called or
// the session is destroyed. Chunks are dropped for a subscriber that falls
// more than a buffer behind.
func (r *Registry) Subscribe(id string) (<-chan Chunk, func(), error) {
	s, err := r.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.subscribe()
	return ch, cancel, nil
}

// SubscribeRecent is Subscribe preceded by the newest recent retained
// chunks. Every chunk appears exactly once across the two, in order.
func (r *Registry) SubscribeRecent(id string, recent int) ([]Chunk, <-chan Chunk, func(), error) {
	s, err := r.get(id)
	if err != nil {
		return nil, nil, nil, err
	}
	replay, ch, cancel := s.subscribeRecent(recent)
	return replay, ch, cancel, nil
}

// BufferedOutput returns retained chunks oldest first; limit <= 0 returns all.
func (r *Registry) BufferedOutput(id string, limit int) ([]Chunk, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return s.bufferedOutput(limit), nil
}

// Destroy interrupts and removes a session. Its watchers lose their parent
// and keep running on their own.
func (r *Registry) Destroy(ctx context.Context, id string) (err error) {
	defer func() { r.recordOp(ctx, "destroy", id, err, nil) }()

	s, ok := r.remove(id)
	if !ok {
		return notFound(id)
	}

	r.unwatch(id)
	for _, w := range r.graph.CleanupParent(id) {
		r.stopObserving(w)
	}
	s.close()

	logger := tracing.LoggerFromContext(ctx, r.logger)
	logger.Info().Str("session_id", id).Msg("Session destroyed")
	return nil
}

func (r *Registry) remove(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		for i, oid := range r.order {
			if oid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		observability.SetActiveSessions(count)
	}
	return s, ok
}

// Close destroys every session
func (r *Registry) Close() {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Destroy(context.Background(), id)
	}
	r.cancel()
}

func (r *Registry) recordOp(ctx context.Context, op, id string, err error, metadata map[string]interface{}) {
	observability.RecordControlOp(op, err)
	observability.RecordControlAudit(ctx, op, id, err, metadata)
	if err != nil {
		logger := tracing.LoggerFromContext(ctx, r.logger)
		logger.Debug().
			Err(err).
			Str("op", op).
			Str("session_id", id).
			Msg("Control operation rejected")
	}
}
