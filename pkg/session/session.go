package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/codelet/internal/observability"
	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/output"
	"github.com/harun/codelet/pkg/pause"
	"github.com/harun/codelet/pkg/toolexecutor"
	"github.com/harun/codelet/pkg/wake"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultHistoryLimit = 10000
	defaultInputQueue   = 32
	subscriberBuffer    = 256
)

// Runner drives one prompt of a session to completion. It must return
// promptly once ctx is done.
type Runner interface {
	RunTurn(ctx context.Context, turn *Turn) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, turn *Turn) error

func (f RunnerFunc) RunTurn(ctx context.Context, turn *Turn) error {
	return f(ctx, turn)
}

// RunnerFactory builds the runner for a new session
type RunnerFactory func(sessionID string, opts Options) (Runner, error)

// Options configures a new session
type Options struct {
	Name       string                   `json:"name,omitempty"`
	Provider   string                   `json:"provider,omitempty"`
	Model      string                   `json:"model,omitempty"`
	Prompt     string                   `json:"prompt,omitempty"`
	WorkingDir string                   `json:"working_dir,omitempty"`
	Policy     *toolexecutor.ToolPolicy `json:"policy,omitempty"`

	// Role and Parent create the session as a watcher of Parent
	Role   *Role  `json:"role,omitempty"`
	Parent string `json:"parent,omitempty"`
}

// Info is a point-in-time summary of a session
type Info struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model,omitempty"`
	Status    Status       `json:"status"`
	Pause     *pause.State `json:"pause,omitempty"`
	Role      *Role        `json:"role,omitempty"`
	Parent    string       `json:"parent,omitempty"`
	Watchers  []string     `json:"watchers,omitempty"`
	Turns     int          `json:"turns"`
	Attached  bool         `json:"attached"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type input struct {
	text string
	kind ChunkKind

	// observed is set for watcher evaluations
	observed []string
}

// Session is one independently controllable conversation.
type Session struct {
	id         string
	name       string
	provider   string
	model      string
	workingDir string
	policy     *toolexecutor.ToolPolicy
	createdAt  time.Time
	runner     Runner
	logger     zerolog.Logger

	// mu guards the lifecycle fields. Chunks are never emitted with mu held.
	mu         sync.RWMutex
	status     Status
	pauseState *pause.State
	role       *Role
	updatedAt  time.Time
	turns      int
	armed      bool
	inTurn     bool
	closed     bool

	wake *wake.Wake
	gate *pause.Gate

	// outMu serializes output: history, correlation ids and delivery.
	outMu        sync.Mutex
	history      []Chunk
	historyLimit int
	seq          uint64
	observer     Observer
	subs         map[uint64]chan Chunk
	nextSub      uint64
	observed     []string

	inputs chan input
	cancel context.CancelFunc
	done   chan struct{}

	// onTurnEnd lets the registry act on a finished turn
	onTurnEnd func(s *Session, in input, text string)
}

type sessionConfig struct {
	id           string
	opts         Options
	runner       Runner
	logger       zerolog.Logger
	historyLimit int
	inputQueue   int
	onTurnEnd    func(s *Session, in input, text string)
}

func newSession(cfg sessionConfig) *Session {
	if cfg.historyLimit <= 0 {
		cfg.historyLimit = defaultHistoryLimit
	}
	if cfg.inputQueue <= 0 {
		cfg.inputQueue = defaultInputQueue
	}

	now := time.Now()
	s := &Session{
		id:           cfg.id,
		name:         cfg.opts.Name,
		provider:     cfg.opts.Provider,
		model:        cfg.opts.Model,
		workingDir:   cfg.opts.WorkingDir,
		policy:       cfg.opts.Policy,
		createdAt:    now,
		updatedAt:    now,
		runner:       cfg.runner,
		logger:       cfg.logger.With().Str("session_id", cfg.id).Logger(),
		status:       StatusCompleted,
		role:         cfg.opts.Role.clone(),
		wake:         wake.New(),
		historyLimit: cfg.historyLimit,
		subs:         make(map[uint64]chan Chunk),
		inputs:       make(chan input, cfg.inputQueue),
		done:         make(chan struct{}),
		onTurnEnd:    cfg.onTurnEnd,
	}
	s.gate = pause.NewGate(s.onPauseChange)
	return s
}

func (s *Session) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// PauseState returns a copy of the open pause, nil unless Paused.
func (s *Session) PauseState() *pause.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pauseState == nil {
		return nil
	}
	c := *s.pauseState
	return &c
}

// Role returns a copy of the watcher role, nil when unset
func (s *Session) Role() *Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role.clone()
}

func (s *Session) setRole(role *Role) {
	s.mu.Lock()
	s.role = role.clone()
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) info() Info {
	s.mu.RLock()
	info := Info{
		ID:        s.id,
		Name:      s.name,
		Provider:  s.provider,
		Model:     s.model,
		Status:    s.status,
		Role:      s.role.clone(),
		Turns:     s.turns,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.pauseState != nil {
		p := *s.pauseState
		info.Pause = &p
	}
	s.mu.RUnlock()

	s.outMu.Lock()
	info.Attached = s.observer != nil
	s.outMu.Unlock()
	return info
}

// onPauseChange keeps status and pause state in step with the gate.
func (s *Session) onPauseChange(state *pause.State) {
	s.mu.Lock()
	var to Status
	var waited *pause.State
	switch {
	case state != nil && s.status == StatusRunning:
		s.status = StatusPaused
		s.pauseState = state
		to = StatusPaused
	case state != nil && s.status == StatusPaused:
		s.pauseState = state
	case state == nil && s.status == StatusPaused:
		waited = s.pauseState
		s.status = StatusRunning
		s.pauseState = nil
		to = StatusRunning
	case state == nil:
		s.pauseState = nil
	}
	if to != "" {
		s.updatedAt = time.Now()
	}
	s.mu.Unlock()

	if waited != nil {
		observability.RecordPauseWait(string(waited.Kind), time.Since(waited.OpenedAt))
	}
	if to != "" {
		s.statusChanged(to)
	}
}

// Resume answers the open pause
func (s *Session) Resume(resp pause.Response) error {
	if s.Status() != StatusPaused {
		return ErrNotPaused
	}
	return s.gate.Resume(resp)
}

// Interrupt stops the in-flight turn. An open pause is abandoned and its
// cancel hook runs. Interrupting an idle session does nothing.
func (s *Session) Interrupt() bool {
	s.mu.Lock()
	if !s.status.Active() {
		s.mu.Unlock()
		return false
	}
	s.status = StatusInterrupted
	s.pauseState = nil
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.wake.Interrupt()
	s.gate.Abandon()
	s.statusChanged(StatusInterrupted)
	return true
}

// SendInput queues a user prompt. An idle session starts running; a busy one,
// or one still unwinding an interrupted turn, processes it after that turn.
func (s *Session) SendInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return validationError("input", "input cannot be empty")
	}
	return s.enqueue(input{text: text, kind: ChunkUserInput})
}

func (s *Session) enqueue(in input) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status == StatusFailed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s has failed", ErrInvalidTransition, s.id)
	}

	select {
	case s.inputs <- in:
	default:
		s.mu.Unlock()
		return fmt.Errorf("input queue full for session %s", s.id)
	}

	started := false
	if !s.inTurn && s.status.Terminal() {
		s.status = StatusRunning
		s.updatedAt = time.Now()
		s.armed = true
		s.wake.Reset()
		started = true
	}
	s.mu.Unlock()

	if started {
		s.statusChanged(StatusRunning)
	}
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.inputs:
			s.runTurn(ctx, in)
		}
	}
}

// beginTurn arms the session for the next queued input. It reports false
// when the session can no longer run.
func (s *Session) beginTurn() bool {
	s.mu.Lock()
	var started bool
	switch {
	case s.closed || s.status == StatusFailed:
		s.mu.Unlock()
		return false
	case s.armed:
		s.armed = false
	case s.status.Terminal():
		s.status = StatusRunning
		s.wake.Reset()
		started = true
	}
	s.inTurn = true
	s.turns++
	s.updatedAt = time.Now()
	s.mu.Unlock()

	if started {
		s.statusChanged(StatusRunning)
	}
	return true
}

func (s *Session) runTurn(parent context.Context, in input) {
	if !s.beginTurn() {
		return
	}

	ctx, cancel := s.wake.Context(parent)
	defer cancel()
	ctx = tracing.WithSessionID(ctx, s.id)

	ctx, span := tracing.StartSpan(ctx, "codelet.session", "session.turn",
		attribute.String("session_id", s.id),
		attribute.String("provider", s.provider),
	)
	defer span.End()

	logger := s.logger.With().Str("trace_id", tracing.GetTraceID(ctx)).Logger()

	if in.kind != "" {
		s.emit(Chunk{Kind: in.kind, Text: in.text})
	}
	s.setObserved(in.observed)
	defer s.setObserved(nil)

	turn := &Turn{s: s, Input: in.text, Kind: in.kind}
	logger.Debug().Str("kind", string(in.kind)).Msg("Turn started")

	err := s.safeRun(ctx, turn)
	status := s.finishTurn(err)

	if err != nil && status == StatusFailed {
		tracing.RecordError(span, err)
		logger.Error().Err(err).Msg("Turn failed")
	} else {
		logger.Debug().Str("status", string(status)).Msg("Turn finished")
	}

	if s.onTurnEnd != nil && status == StatusCompleted {
		s.onTurnEnd(s, in, turn.Text())
	}
}

func (s *Session) safeRun(ctx context.Context, turn *Turn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runner panic: %v", r)
		}
	}()
	if s.runner == nil {
		return errors.New("no runner configured")
	}
	return s.runner.RunTurn(ctx, turn)
}

// finishTurn settles the status once the runner returns. An interrupt that
// already moved the session keeps it Interrupted.
func (s *Session) finishTurn(err error) Status {
	interrupted := s.wake.Reason() == wake.Interrupt ||
		errors.Is(err, wake.ErrInterrupted) || errors.Is(err, context.Canceled)

	s.mu.Lock()
	var to Status
	switch {
	case s.status == StatusInterrupted:
	case interrupted:
		to = StatusInterrupted
	case err != nil:
		to = StatusFailed
	default:
		to = StatusCompleted
	}
	if to != "" {
		if s.status == StatusPaused {
			// the gate always closes before the tool returns; fall back to Interrupted
			to = StatusInterrupted
		}
		s.status = to
		s.pauseState = nil
		s.updatedAt = time.Now()
	}
	final := s.status
	s.inTurn = false
	s.mu.Unlock()

	if final == StatusFailed && err != nil {
		s.emit(Chunk{Kind: ChunkError, Text: err.Error()})
	}
	if to != "" {
		s.statusChanged(to)
	}
	s.emit(Chunk{Kind: ChunkDone, Status: final})
	return final
}

func (s *Session) statusChanged(to Status) {
	observability.RecordSessionTransition(string(to))
	s.logger.Debug().Str("status", string(to)).Msg("Session status changed")
	s.emit(Chunk{Kind: ChunkStatus, Status: to})
}

func (s *Session) setObserved(ids []string) {
	s.outMu.Lock()
	s.observed = ids
	s.outMu.Unlock()
}

// emit stamps a chunk and delivers it to history, subscribers and the observer.
func (s *Session) emit(c Chunk) Chunk {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	c.SessionID = s.id
	c.Seq = s.seq
	c.CorrelationID = fmt.Sprintf("%s-%d", s.id, s.seq)
	s.seq++
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	if c.ObservedCorrelationIDs == nil && len(s.observed) > 0 {
		c.ObservedCorrelationIDs = append([]string(nil), s.observed...)
	}

	s.history = append(s.history, c)
	if len(s.history) > s.historyLimit+s.historyLimit/4 {
		s.history = append([]Chunk(nil), s.history[len(s.history)-s.historyLimit:]...)
	}

	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
	if s.observer != nil {
		s.observer.OnChunk(s.id, c)
	}
	observability.RecordChunk()
	return c
}

func (s *Session) emitTerminal(ev TerminalEvent) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.observer != nil {
		s.observer.OnTerminal(s.id, ev)
	}
}

func (s *Session) attach(obs Observer) {
	s.outMu.Lock()
	s.observer = obs
	s.outMu.Unlock()
}

func (s *Session) detach() bool {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	had := s.observer != nil
	s.observer = nil
	return had
}

// subscribe returns a channel of future chunks and a cancel func. Slow
// subscribers lose chunks rather than stall the session.
func (s *Session) subscribe() (<-chan Chunk, func()) {
	_, ch, cancel := s.subscribeRecent(0)
	return ch, cancel
}

// subscribeRecent registers a subscriber and snapshots the newest recent
// retained chunks under the same lock, so the snapshot and the channel
// neither overlap nor leave a gap.
func (s *Session) subscribeRecent(recent int) ([]Chunk, <-chan Chunk, func()) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	var replay []Chunk
	if recent > 0 {
		history := s.history
		if len(history) > s.historyLimit {
			history = history[len(history)-s.historyLimit:]
		}
		if recent < len(history) {
			history = history[len(history)-recent:]
		}
		replay = append([]Chunk(nil), history...)
	}

	ch := make(chan Chunk, subscriberBuffer)
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		close(ch)
		return replay, ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return replay, ch, func() {
		once.Do(func() {
			s.outMu.Lock()
			defer s.outMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// bufferedOutput returns retained chunks oldest first, at most limit when
// limit is positive.
func (s *Session) bufferedOutput(limit int) []Chunk {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	history := s.history
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}
	return append([]Chunk(nil), history...)
}

// close interrupts any turn, stops the loop and ends every subscription.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.Interrupt()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.outMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.observer = nil
	s.outMu.Unlock()
}

// Turn is the runner's handle on one in-flight prompt.
type Turn struct {
	s     *Session
	Input string
	Kind  ChunkKind

	mu   sync.Mutex
	text strings.Builder
}

// SessionID returns the owning session's id
func (t *Turn) SessionID() string { return t.s.id }

// Provider returns the session's provider name
func (t *Turn) Provider() string { return t.s.provider }

// Model returns the session's model
func (t *Turn) Model() string { return t.s.model }

// Wake returns the session's cancellation signal
func (t *Turn) Wake() *wake.Wake { return t.s.wake }

// Gate returns the session's pause gate
func (t *Turn) Gate() *pause.Gate { return t.s.gate }

// Policy returns the session's tool policy, nil when unrestricted
func (t *Turn) Policy() *toolexecutor.ToolPolicy { return t.s.policy }

// EmitText streams assistant text
func (t *Turn) EmitText(text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	t.text.WriteString(text)
	t.mu.Unlock()
	t.s.emit(Chunk{Kind: ChunkText, Text: text})
}

// Text returns the assistant text emitted so far in this turn
func (t *Turn) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// EmitToolCall announces a tool call before it runs
func (t *Turn) EmitToolCall(toolCallID, toolName, arguments string) {
	t.s.emit(Chunk{Kind: ChunkToolCall, Tool: toolName, ToolCallID: toolCallID, Text: arguments})
}

// ExecutionContext builds the context for executing one tool call. Live tool
// output is streamed as tool_output chunks.
func (t *Turn) ExecutionContext(toolCallID, toolName string) *toolexecutor.ExecutionContext {
	s := t.s
	return &toolexecutor.ExecutionContext{
		SessionID:  s.id,
		WorkingDir: s.workingDir,
		Wake:       s.wake,
		Gate:       s.gate,
		Policy:     s.policy,
		Sink: func(c output.Chunk) {
			s.emit(Chunk{
				Kind:       ChunkToolOutput,
				Tool:       toolName,
				ToolCallID: toolCallID,
				Text:       c.Text,
				IsStderr:   c.IsStderr,
			})
		},
	}
}

// ToolFinished publishes a tool's terminal event and its result chunk.
func (t *Turn) ToolFinished(toolCallID string, res toolexecutor.ToolResult) {
	t.s.emitTerminal(TerminalEvent{
		Tool:       res.Tool,
		ToolCallID: toolCallID,
		Kind:       res.Outcome,
		Output:     res.Output,
		Truncated:  res.Truncated,
		Error:      res.Error,
	})
	t.s.emit(Chunk{Kind: ChunkToolResult, Tool: res.Tool, ToolCallID: toolCallID, Text: res.Content()})
}
