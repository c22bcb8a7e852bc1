package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/codelet/pkg/session"
)

func (g *testGateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(g.http.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads events until one matches, failing on timeout
func readUntil(t *testing.T, conn *websocket.Conn, match func(EventMessage) bool) EventMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg EventMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestStream_OpenServerSubscribe(t *testing.T) {
	g := newTestGateway(t, "")
	info := g.create(t, CreateSessionRequest{Prompt: "first"})
	g.waitStatus(t, info.ID, session.StatusCompleted)

	conn := g.dial(t)
	hello := readEvent(t, conn)
	assert.Equal(t, EventAuthSuccess, hello.Event)

	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodSubscribe, SessionID: info.ID, Replay: 100}))
	sub := readEvent(t, conn)
	assert.Equal(t, EventSubscribed, sub.Event)

	// replay carries the first turn
	replayed := readUntil(t, conn, func(m EventMessage) bool {
		return m.Event == EventChunk && m.Chunk.Kind == session.ChunkText
	})
	assert.Equal(t, "echo: first", replayed.Chunk.Text)

	// live chunks follow
	require.NoError(t, g.reg.SendInput(context.Background(), info.ID, "second"))
	live := readUntil(t, conn, func(m EventMessage) bool {
		return m.Event == EventChunk && m.Chunk.Kind == session.ChunkText
	})
	assert.Equal(t, "echo: second", live.Chunk.Text)
	assert.Greater(t, live.Chunk.Seq, replayed.Chunk.Seq)

	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodUnsubscribe, SessionID: info.ID}))
	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventUnsubscribed })

	require.Eventually(t, func() bool {
		infos := g.srv.clients.Snapshot("")
		return len(infos) == 1 && len(infos[0].Sessions) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStream_ChallengeAuth(t *testing.T) {
	g := newTestGateway(t, "s3cret")
	conn := g.dial(t)

	challenge := readEvent(t, conn)
	require.Equal(t, EventAuthChallenge, challenge.Event)
	require.NotEmpty(t, challenge.Challenge)

	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodSubscribe, SessionID: "x"}))
	notAuthed := readEvent(t, conn)
	assert.Equal(t, EventError, notAuthed.Event)

	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodAuthResponse, Signature: "bad"}))
	failed := readEvent(t, conn)
	assert.Equal(t, EventAuthFailure, failed.Event)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Method:    MethodAuthResponse,
		Signature: Sign("s3cret", challenge.Challenge),
	}))
	ok := readEvent(t, conn)
	assert.Equal(t, EventAuthSuccess, ok.Event)

	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodSubscribe, SessionID: "missing"}))
	missing := readEvent(t, conn)
	assert.Equal(t, EventError, missing.Event)
	assert.Contains(t, missing.Message, "not found")
}

func TestStream_ClosesAfterFailedAttempts(t *testing.T) {
	g := newTestGateway(t, "s3cret")
	conn := g.dial(t)
	readEvent(t, conn)

	for i := 0; i < maxAuthAttempts; i++ {
		require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodAuthResponse, Signature: "bad"}))
		assert.Equal(t, EventAuthFailure, readEvent(t, conn).Event)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestStream_SessionDestroyedEndsSubscription(t *testing.T) {
	g := newTestGateway(t, "")
	info := g.create(t, CreateSessionRequest{})
	conn := g.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodSubscribe, SessionID: info.ID}))
	assert.Equal(t, EventSubscribed, readEvent(t, conn).Event)

	resp := g.do(t, http.MethodDelete, "/sessions/"+info.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	msg := readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventUnsubscribed })
	assert.Equal(t, info.ID, msg.SessionID)
}

func TestServer_StartStop(t *testing.T) {
	g := newTestGateway(t, "")
	srv := g.srv
	srv.cfg.TickInterval = 20 * time.Millisecond
	require.NoError(t, srv.Start())
	assert.NotEmpty(t, srv.Addr())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)
	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventTick })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventShutdown })
}

// readChunkSeqs collects chunk sequence numbers until stop matches a chunk
func readChunkSeqs(t *testing.T, conn *websocket.Conn, stop func(session.Chunk) bool) []uint64 {
	t.Helper()
	var seqs []uint64
	for {
		msg := readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventChunk })
		seqs = append(seqs, msg.Chunk.Seq)
		if stop(*msg.Chunk) {
			return seqs
		}
	}
}

func historySeqs(t *testing.T, reg *session.Registry, id string) []uint64 {
	t.Helper()
	chunks, err := reg.BufferedOutput(id, 0)
	require.NoError(t, err)
	seqs := make([]uint64, 0, len(chunks))
	for _, c := range chunks {
		seqs = append(seqs, c.Seq)
	}
	return seqs
}

func isDone(c session.Chunk) bool { return c.Kind == session.ChunkDone }

func TestStream_LiveOnlyDeliversFirstChunk(t *testing.T) {
	g := newTestGateway(t, "")
	info := g.create(t, CreateSessionRequest{})

	conn := g.dial(t)
	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventAuthSuccess })
	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodSubscribe, SessionID: info.ID}))
	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventSubscribed })

	require.NoError(t, g.reg.SendInput(context.Background(), info.ID, "hello"))
	got := readChunkSeqs(t, conn, isDone)

	assert.Equal(t, historySeqs(t, g.reg, info.ID), got)
}

func TestStream_ReplayNewestWithoutGap(t *testing.T) {
	g := newTestGateway(t, "")
	info := g.create(t, CreateSessionRequest{Prompt: "first"})
	g.waitStatus(t, info.ID, session.StatusCompleted)
	require.Eventually(t, func() bool {
		seqs := historySeqs(t, g.reg, info.ID)
		chunks, _ := g.reg.BufferedOutput(info.ID, 0)
		return len(seqs) > 2 && chunks[len(chunks)-1].Kind == session.ChunkDone
	}, 2*time.Second, 5*time.Millisecond)
	before := historySeqs(t, g.reg, info.ID)

	conn := g.dial(t)
	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventAuthSuccess })
	require.NoError(t, conn.WriteJSON(ClientMessage{Method: MethodSubscribe, SessionID: info.ID, Replay: 2}))
	readUntil(t, conn, func(m EventMessage) bool { return m.Event == EventSubscribed })

	// the newest two chunks, ending with the first turn's done
	replayed := readChunkSeqs(t, conn, isDone)
	assert.Equal(t, before[len(before)-2:], replayed)

	require.NoError(t, g.reg.SendInput(context.Background(), info.ID, "second"))
	live := readChunkSeqs(t, conn, isDone)

	all := historySeqs(t, g.reg, info.ID)
	assert.Equal(t, all[len(before)-2:], append(replayed, live...))
}
