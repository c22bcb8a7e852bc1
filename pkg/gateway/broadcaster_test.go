package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair returns the server side of a websocket wrapped in a Client and the
// dialled client side.
func wsPair(t *testing.T, id string) (*Client, *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(ts.Close)

	dialed, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dialed.Close() })

	select {
	case conn := <-serverConns:
		t.Cleanup(func() { conn.Close() })
		return &Client{ID: id, Conn: conn, ConnectedAt: time.Now(), LastActivity: time.Now()}, dialed
	case <-time.After(2 * time.Second):
		t.Fatal("websocket upgrade timed out")
		return nil, nil
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg EventMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEventBroadcaster_Broadcast(t *testing.T) {
	clients := NewClientRegistry()
	b := NewEventBroadcaster(clients, zerolog.Nop())

	assert.Equal(t, 0, b.Broadcast(EventMessage{Event: EventTick}))

	authed, authedConn := wsPair(t, "authed")
	authed.Authenticated = true
	pending, _ := wsPair(t, "pending")
	clients.Add(authed)
	clients.Add(pending)

	sent := b.Broadcast(EventMessage{Event: EventTick})
	assert.Equal(t, 1, sent)

	msg := readEvent(t, authedConn)
	assert.Equal(t, EventTick, msg.Event)
	assert.Equal(t, int64(1), msg.Seq)
	assert.NotZero(t, msg.Timestamp)

	b.Broadcast(EventMessage{Event: EventShutdown})
	msg = readEvent(t, authedConn)
	assert.Equal(t, EventShutdown, msg.Event)
	assert.Equal(t, int64(2), msg.Seq)
}

func TestClientRegistry(t *testing.T) {
	clients := NewClientRegistry()
	early := &Client{ID: "a", ConnectedAt: time.Now().Add(-time.Hour), LastActivity: time.Now().Add(-time.Hour)}
	late := &Client{ID: "b", ConnectedAt: time.Now(), LastActivity: time.Now(), Authenticated: true}
	late.addSub("s2", func() {})
	late.addSub("s1", func() {})
	clients.Add(late)
	clients.Add(early)

	assert.Equal(t, 2, clients.Count())
	assert.Len(t, clients.All(), 2)
	assert.Len(t, clients.Authenticated(), 1)

	infos := clients.Snapshot("")
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)
	assert.True(t, infos[0].Idle)
	assert.Equal(t, []string{"s1", "s2"}, infos[1].Sessions)

	streaming := clients.Snapshot("s1")
	require.Len(t, streaming, 1)
	assert.Equal(t, "b", streaming[0].ID)
	assert.Empty(t, clients.Snapshot("unknown"))

	clients.Touch("a")
	assert.False(t, clients.Snapshot("")[0].Idle)

	clients.Remove("a")
	_, ok := clients.Get("a")
	assert.False(t, ok)
}

func TestClient_Subscriptions(t *testing.T) {
	c := &Client{ID: "c"}
	cancelled := 0

	assert.True(t, c.addSub("s1", func() { cancelled++ }))
	assert.False(t, c.addSub("s1", func() { cancelled++ }))
	assert.True(t, c.addSub("s2", func() { cancelled++ }))

	assert.True(t, c.dropSub("s1"))
	assert.False(t, c.dropSub("s1"))
	assert.Equal(t, 1, cancelled)

	c.dropAll()
	assert.Equal(t, 2, cancelled)
	assert.Empty(t, c.sessions())
}
