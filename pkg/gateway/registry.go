package gateway

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// idleAfter marks a client idle in ClientInfo
const idleAfter = 5 * time.Minute

// ClientRegistry tracks websocket clients and, through them, which sessions
// are being streamed.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
}

func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

func (r *ClientRegistry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[clientID]
	return client, ok
}

// All returns every client, authenticated or not
func (r *ClientRegistry) All() []*Client {
	return r.filter(func(*Client) bool { return true })
}

// Authenticated returns the clients allowed to receive events
func (r *ClientRegistry) Authenticated() []*Client {
	return r.filter(func(c *Client) bool { return c.Authenticated })
}

func (r *ClientRegistry) filter(keep func(*Client) bool) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot describes clients oldest first. A non-empty sessionID keeps only
// clients streaming that session.
func (r *ClientRegistry) Snapshot(sessionID string) []ClientInfo {
	now := time.Now()
	infos := []ClientInfo{}
	for _, c := range r.All() {
		subs := c.sessions()
		if sessionID != "" && !slices.Contains(subs, sessionID) {
			continue
		}
		sort.Strings(subs)
		infos = append(infos, ClientInfo{
			ID:            c.ID,
			Authenticated: c.Authenticated,
			ConnectedAt:   c.ConnectedAt,
			LastActivity:  c.lastActivity(),
			IPAddress:     c.IPAddress,
			Sessions:      subs,
			Idle:          now.Sub(c.lastActivity()) > idleAfter,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// Touch records activity from a client
func (r *ClientRegistry) Touch(clientID string) {
	if c, ok := r.Get(clientID); ok {
		c.touch(time.Now())
	}
}
