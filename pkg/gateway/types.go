package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harun/codelet/pkg/session"
)

// Event names sent over the websocket
const (
	EventChunk         = "chunk"
	EventSubscribed    = "subscribed"
	EventUnsubscribed  = "unsubscribed"
	EventError         = "error"
	EventTick          = "tick"
	EventShutdown      = "server.shutdown"
	EventAuthChallenge = "auth.challenge"
	EventAuthSuccess   = "auth.success"
	EventAuthFailure   = "auth.failure"
)

// Client methods accepted over the websocket
const (
	MethodAuthResponse = "auth.response"
	MethodSubscribe    = "subscribe"
	MethodUnsubscribe  = "unsubscribe"
)

// EventMessage is one server-initiated websocket message. Seq is monotonic
// per connection.
type EventMessage struct {
	Event     string         `json:"event"`
	Seq       int64          `json:"seq"`
	SessionID string         `json:"session_id,omitempty"`
	Chunk     *session.Chunk `json:"chunk,omitempty"`
	Challenge string         `json:"challenge,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ClientMessage is a client-initiated websocket message
type ClientMessage struct {
	Method    string `json:"method"`
	SessionID string `json:"session_id,omitempty"`
	Signature string `json:"signature,omitempty"`

	// Replay sends up to this many buffered chunks before live ones
	Replay int `json:"replay,omitempty"`
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastActivity  time.Time `json:"last_activity"`
	IPAddress     string    `json:"ip_address"`
	Sessions      []string  `json:"sessions,omitempty"`
	Idle          bool      `json:"idle"`
}

// ClientState represents the state of a client connection
type ClientState int

const (
	StateConnecting ClientState = iota
	StateAuthenticating
	StateAuthenticated
	StateDisconnected
)

// Client represents a connected websocket client
type Client struct {
	ID            string
	Conn          *websocket.Conn
	Authenticated bool
	Challenge     string
	ConnectedAt   time.Time
	LastActivity  time.Time
	IPAddress     string
	AuthAttempts  int
	State         ClientState

	writeMu sync.Mutex
	seq     atomic.Int64

	subMu sync.Mutex
	subs  map[string]func()
}

// Send stamps msg with the next sequence number and writes it. The
// connection allows one writer at a time.
func (c *Client) Send(msg EventMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg.Seq = c.seq.Add(1)
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return c.Conn.WriteJSON(msg)
}

// sessions returns the ids this client is subscribed to
func (c *Client) sessions() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) addSub(sessionID string, cancel func()) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subs == nil {
		c.subs = make(map[string]func())
	}
	if _, ok := c.subs[sessionID]; ok {
		return false
	}
	c.subs[sessionID] = cancel
	return true
}

func (c *Client) dropSub(sessionID string) bool {
	c.subMu.Lock()
	cancel, ok := c.subs[sessionID]
	delete(c.subs, sessionID)
	c.subMu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (c *Client) dropAll() {
	c.subMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subMu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

func (c *Client) touch(at time.Time) {
	c.subMu.Lock()
	c.LastActivity = at
	c.subMu.Unlock()
}

func (c *Client) lastActivity() time.Time {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return c.LastActivity
}

// ErrorResponse is the JSON body of a failed HTTP request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
