package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/harun/codelet/internal/tracing"
	"github.com/harun/codelet/pkg/facade"
	"github.com/harun/codelet/pkg/pause"
	"github.com/harun/codelet/pkg/session"
	"github.com/harun/codelet/pkg/toolexecutor"
)

// Error codes in ErrorResponse
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// RoleRequest is the body of PUT /sessions/{id}/role
type RoleRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Authority   string  `json:"authority,omitempty"`
	AutoInject  *bool   `json:"auto_inject,omitempty"`
}

func (r RoleRequest) options() []session.RoleOption {
	if r.AutoInject == nil {
		return nil
	}
	return []session.RoleOption{session.WithAutoInject(*r.AutoInject)}
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	Name       string                   `json:"name,omitempty"`
	Provider   string                   `json:"provider,omitempty"`
	Model      string                   `json:"model,omitempty"`
	Prompt     string                   `json:"prompt,omitempty"`
	WorkingDir string                   `json:"working_dir,omitempty"`
	Policy     *toolexecutor.ToolPolicy `json:"policy,omitempty"`
	Parent     string                   `json:"parent,omitempty"`
	Role       *RoleRequest             `json:"role,omitempty"`
}

// InputRequest is the body of POST /sessions/{id}/input and /inject
type InputRequest struct {
	Text string `json:"text"`
}

// ResumeRequest is the body of POST /sessions/{id}/resume
type ResumeRequest struct {
	Response string `json:"response"`
}

// WatcherRequest is the body of POST /sessions/{id}/watchers
type WatcherRequest struct {
	WatcherID string `json:"watcher_id"`
}

// PauseResponse is the body of GET /sessions/{id}/pause
type PauseResponse struct {
	Paused bool         `json:"paused"`
	Pause  *pause.State `json:"pause,omitempty"`
}

// SendJSON writes data as a JSON response
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// SendError writes an ErrorResponse
func SendError(w http.ResponseWriter, status int, code, message string) {
	SendJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// sendControlError maps registry errors onto HTTP statuses
func sendControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		SendError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, session.ErrValidation),
		errors.Is(err, pause.ErrInvalidResponse),
		errors.Is(err, facade.ErrUnknownProvider):
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case errors.Is(err, session.ErrNotPaused),
		errors.Is(err, session.ErrAlreadyPaused),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNoParent),
		errors.Is(err, session.ErrWatcherHasParent),
		errors.Is(err, session.ErrCircularWatch):
		SendError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, session.ErrSessionLimit):
		SendError(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
	default:
		SendError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decode(w, r, &req) {
		return
	}

	opts := session.Options{
		Name:       req.Name,
		Provider:   req.Provider,
		Model:      req.Model,
		Prompt:     req.Prompt,
		WorkingDir: req.WorkingDir,
		Policy:     req.Policy,
		Parent:     req.Parent,
	}
	if req.Role != nil {
		role, err := session.NewRole(req.Role.Name, req.Role.Description, req.Role.Authority)
		if err != nil {
			sendControlError(w, err)
			return
		}
		for _, opt := range req.Role.options() {
			opt(role)
		}
		opts.Role = role
	}

	id, err := s.sessions.Create(r.Context(), opts)
	if err != nil && id == "" {
		sendControlError(w, err)
		return
	}
	if err != nil {
		// created, but the initial prompt was not queued
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Warn().Err(err).Str("session_id", id).Msg("Initial prompt not queued")
	}

	info, infoErr := s.sessions.Info(id)
	if infoErr != nil {
		sendControlError(w, infoErr)
		return
	}
	SendJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	SendJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Info(mux.Vars(r)["id"])
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.sessions.SendInput(r.Context(), mux.Vars(r)["id"], req.Text); err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.sessions.Interrupt(r.Context(), id); err != nil {
		sendControlError(w, err)
		return
	}
	status, err := s.sessions.Status(id)
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) handlePauseQuery(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.PauseQuery(mux.Vars(r)["id"])
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, PauseResponse{Paused: state != nil, Pause: state})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := pause.ParseResponse(req.Response)
	if err != nil {
		sendControlError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.sessions.Resume(r.Context(), id, resp); err != nil {
		sendControlError(w, err)
		return
	}
	status, err := s.sessions.Status(id)
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.sessions.SetRole(r.Context(), id, req.Name, req.Description, req.Authority, req.options()...); err != nil {
		sendControlError(w, err)
		return
	}
	s.sendRole(w, id)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	s.sendRole(w, mux.Vars(r)["id"])
}

func (s *Server) sendRole(w http.ResponseWriter, id string) {
	role, err := s.sessions.GetRole(id)
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"role": role})
}

func (s *Server) handleClearRole(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ClearRole(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	chunks, err := s.sessions.BufferedOutput(mux.Vars(r)["id"], limit)
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *Server) handleAddWatcher(w http.ResponseWriter, r *http.Request) {
	var req WatcherRequest
	if !decode(w, r, &req) {
		return
	}
	if req.WatcherID == "" {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "watcher_id is required")
		return
	}
	if err := s.sessions.AddWatcher(r.Context(), mux.Vars(r)["id"], req.WatcherID); err != nil {
		sendControlError(w, err)
		return
	}
	s.sendWatchers(w, mux.Vars(r)["id"])
}

func (s *Server) handleListWatchers(w http.ResponseWriter, r *http.Request) {
	s.sendWatchers(w, mux.Vars(r)["id"])
}

func (s *Server) sendWatchers(w http.ResponseWriter, id string) {
	watchers, err := s.sessions.Watchers(id)
	if err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"watchers": watchers})
}

// handleUnwatch detaches the session in the path from whatever it watches
func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RemoveWatcher(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInject sends a supervisor watcher's message to its parent
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.sessions.WatcherInject(r.Context(), mux.Vars(r)["id"], req.Text); err != nil {
		sendControlError(w, err)
		return
	}
	SendJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, map[string]any{"clients": s.clients.Snapshot(r.URL.Query().Get("session_id"))})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	SendJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"clients":  s.clients.Count(),
	})
}
