package gateway

import (
	"net/http"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/harun/codelet/pkg/session"
)

// handleWebSocket upgrades the connection and runs the client's read loop.
// Chunks for subscribed sessions are pushed by one forwarder per subscription.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		SendError(w, http.StatusServiceUnavailable, ErrCodeInternal, "Server is shutting down")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New(12)
	if err != nil {
		conn.Close()
		return
	}
	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    remoteHost(r.RemoteAddr),
		State:        StateConnecting,
	}

	logger := s.logger.With().Str("client_id", clientID).Logger()

	if s.authHandler.Enabled() {
		challenge, err := s.authHandler.GenerateChallenge()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to generate challenge")
			conn.Close()
			return
		}
		client.Challenge = challenge
		client.State = StateAuthenticating
		s.clients.Add(client)
		if err := client.Send(EventMessage{Event: EventAuthChallenge, Challenge: challenge}); err != nil {
			s.disconnect(client)
			return
		}
	} else {
		client.Authenticated = true
		client.State = StateAuthenticated
		s.clients.Add(client)
		_ = client.Send(EventMessage{Event: EventAuthSuccess})
	}

	logger.Info().Str("ip", client.IPAddress).Msg("Client connected")
	defer s.disconnect(client)

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Debug().Err(err).Msg("Client read ended")
			return
		}
		s.clients.Touch(client.ID)

		if !s.handleClientMessage(client, msg) {
			return
		}
	}
}

// handleClientMessage returns false when the connection should close
func (s *Server) handleClientMessage(client *Client, msg ClientMessage) bool {
	if msg.Method == MethodAuthResponse {
		if client.Authenticated {
			return true
		}
		resp := s.authHandler.HandleAuthResponse(client, msg.Signature)
		if err := client.Send(resp); err != nil {
			return false
		}
		return resp.Event == EventAuthSuccess || client.AuthAttempts < maxAuthAttempts
	}

	if !client.Authenticated {
		_ = client.Send(EventMessage{Event: EventError, Message: "Not authenticated"})
		return true
	}

	switch msg.Method {
	case MethodSubscribe:
		s.subscribe(client, msg.SessionID, msg.Replay)
	case MethodUnsubscribe:
		if !client.dropSub(msg.SessionID) {
			_ = client.Send(EventMessage{Event: EventError, SessionID: msg.SessionID, Message: "not subscribed"})
			return true
		}
		_ = client.Send(EventMessage{Event: EventUnsubscribed, SessionID: msg.SessionID})
	default:
		_ = client.Send(EventMessage{Event: EventError, Message: "unknown method: " + msg.Method})
	}
	return true
}

// subscribe replays up to replay of the newest buffered chunks and then
// streams live ones. The registry hands over both atomically, so nothing is
// sent twice and nothing falls between them.
func (s *Server) subscribe(client *Client, sessionID string, replay int) {
	if sessionID == "" {
		_ = client.Send(EventMessage{Event: EventError, Message: "session_id is required"})
		return
	}
	if replay < 0 {
		replay = 0
	}

	buffered, ch, cancel, err := s.sessions.SubscribeRecent(sessionID, replay)
	if err != nil {
		_ = client.Send(EventMessage{Event: EventError, SessionID: sessionID, Message: err.Error()})
		return
	}
	if !client.addSub(sessionID, cancel) {
		cancel()
		_ = client.Send(EventMessage{Event: EventError, SessionID: sessionID, Message: "already subscribed"})
		return
	}

	_ = client.Send(EventMessage{Event: EventSubscribed, SessionID: sessionID})
	for i := range buffered {
		chunk := buffered[i]
		if err := client.Send(EventMessage{Event: EventChunk, SessionID: sessionID, Chunk: &chunk}); err != nil {
			client.dropSub(sessionID)
			return
		}
	}

	go s.forward(client, sessionID, ch)
}

func (s *Server) forward(client *Client, sessionID string, ch <-chan session.Chunk) {
	for chunk := range ch {
		if err := client.Send(EventMessage{Event: EventChunk, SessionID: sessionID, Chunk: &chunk}); err != nil {
			s.logger.Debug().Err(err).Str("client_id", client.ID).Str("session_id", sessionID).Msg("Chunk forward failed")
			client.dropSub(sessionID)
			return
		}
	}
	// channel closed by the registry: the session is gone
	if client.dropSub(sessionID) {
		_ = client.Send(EventMessage{Event: EventUnsubscribed, SessionID: sessionID, Message: "session closed"})
	}
}

func (s *Server) disconnect(client *Client) {
	client.dropAll()
	client.State = StateDisconnected
	s.clients.Remove(client.ID)
	client.Conn.Close()
	s.logger.Info().Str("client_id", client.ID).Msg("Client disconnected")
}
