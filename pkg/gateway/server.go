package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/codelet/internal/observability"
	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/pause"
	"github.com/harun/codelet/pkg/session"
)

// Sessions is the control surface the gateway exposes. *session.Registry
// implements it.
type Sessions interface {
	Create(ctx context.Context, opts session.Options) (string, error)
	Status(id string) (session.Status, error)
	Info(id string) (session.Info, error)
	List() []session.Info
	Count() int
	Destroy(ctx context.Context, id string) error
	SendInput(ctx context.Context, id, text string) error
	Interrupt(ctx context.Context, id string) error
	PauseQuery(id string) (*pause.State, error)
	Resume(ctx context.Context, id string, resp pause.Response) error
	SetRole(ctx context.Context, id, name string, description *string, authority string, opts ...session.RoleOption) error
	GetRole(id string) (*session.Role, error)
	ClearRole(ctx context.Context, id string) error
	BufferedOutput(id string, limit int) ([]session.Chunk, error)
	SubscribeRecent(id string, recent int) ([]session.Chunk, <-chan session.Chunk, func(), error)
	AddWatcher(ctx context.Context, parentID, watcherID string) error
	RemoveWatcher(ctx context.Context, watcherID string) error
	Watchers(parentID string) ([]string, error)
	WatcherInject(ctx context.Context, watcherID, message string) error
}

// Config holds server configuration
type Config struct {
	// Listen is the TCP address, e.g. "127.0.0.1:7420"
	Listen       string
	SharedSecret string
	TickInterval time.Duration

	// RequestsPerMinute and MaxConcurrent limit each caller; zero disables
	RequestsPerMinute int
	MaxConcurrent     int

	Sessions Sessions
	Logger   zerolog.Logger
}

// Server is the HTTP and websocket front end of a session registry
type Server struct {
	cfg         Config
	sessions    Sessions
	server      *http.Server
	listener    net.Listener
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	authHandler *AuthHandler
	broadcaster *EventBroadcaster
	limiter     *RateLimiter
	logger      zerolog.Logger

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlightReqs   sync.WaitGroup
	tickCancel     context.CancelFunc
	tickWG         sync.WaitGroup
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if cfg.Listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	observability.EnsureRegistered()

	logger := cfg.Logger.With().Str("component", "gateway").Logger()
	clients := NewClientRegistry()

	return &Server{
		cfg:         cfg,
		sessions:    cfg.Sessions,
		clients:     clients,
		authHandler: NewAuthHandler(cfg.SharedSecret),
		broadcaster: NewEventBroadcaster(clients, logger),
		limiter:     NewRateLimiter(cfg.RequestsPerMinute, cfg.MaxConcurrent),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.NewRoute().Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)

	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/input", s.handleInput).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/interrupt", s.handleInterrupt).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/pause", s.handlePauseQuery).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/resume", s.handleResume).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/role", s.handleSetRole).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/role", s.handleGetRole).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/role", s.handleClearRole).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/output", s.handleOutput).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/watchers", s.handleAddWatcher).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/watchers", s.handleListWatchers).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/watch", s.handleUnwatch).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/inject", s.handleInject).Methods(http.MethodPost)
	api.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)

	return r
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway")
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.startTickEmitter()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop announces shutdown to websocket clients, waits for in-flight
// requests and closes the server.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway")
	s.stopTickEmitter()
	s.broadcaster.Broadcast(EventMessage{Event: EventShutdown, Message: "Server is shutting down"})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.All() {
		client.dropAll()
		client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info().Msg("Gateway stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

func (s *Server) startTickEmitter() {
	if s.cfg.TickInterval <= 0 {
		return
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel
	s.tickWG.Add(1)

	go func() {
		defer s.tickWG.Done()

		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				s.broadcaster.Broadcast(EventMessage{Event: EventTick})
			}
		}
	}()
}

func (s *Server) stopTickEmitter() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	s.tickWG.Wait()
}

// traceMiddleware starts a request trace, honouring an incoming X-Trace-Id
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if traceID := r.Header.Get("X-Trace-Id"); traceID != "" {
			ctx = tracing.WithTraceID(ctx, traceID)
		} else {
			ctx = tracing.NewRequestContext(ctx)
		}
		w.Header().Set("X-Trace-Id", tracing.GetTraceID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authHandler.AuthorizeRequest(r) {
			SendError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.shuttingDown() {
			SendError(w, http.StatusServiceUnavailable, ErrCodeInternal, "Server is shutting down")
			return
		}
		release, err := s.limiter.Acquire(remoteHost(r.RemoteAddr))
		if err != nil {
			SendError(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
			return
		}
		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()
		defer release()

		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("Gateway request")
		next.ServeHTTP(w, r)
	})
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
