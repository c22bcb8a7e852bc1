package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/codelet/pkg/session"
)

// echoRunner answers every prompt with "echo: <input>"
func echoRunner(string, session.Options) (session.Runner, error) {
	return session.RunnerFunc(func(_ context.Context, turn *session.Turn) error {
		turn.EmitText("echo: " + turn.Input)
		return nil
	}), nil
}

type testGateway struct {
	srv  *Server
	http *httptest.Server
	reg  *session.Registry
}

func newTestGateway(t *testing.T, secret string) *testGateway {
	t.Helper()
	reg := session.NewRegistry(session.Config{Logger: zerolog.Nop(), NewRunner: echoRunner})
	srv, err := NewServer(Config{
		Listen:       "127.0.0.1:0",
		SharedSecret: secret,
		Sessions:     reg,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		reg.Close()
	})
	return &testGateway{srv: srv, http: ts, reg: reg}
}

func (g *testGateway) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, g.http.URL+path, &buf)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (g *testGateway) create(t *testing.T, req CreateSessionRequest) session.Info {
	t.Helper()
	resp := g.do(t, http.MethodPost, "/sessions", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[session.Info](t, resp)
}

func (g *testGateway) waitStatus(t *testing.T, id string, want session.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := g.reg.Status(id)
		return err == nil && st == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{Listen: "127.0.0.1:0"})
	assert.Error(t, err)

	reg := session.NewRegistry(session.Config{Logger: zerolog.Nop(), NewRunner: echoRunner})
	defer reg.Close()
	_, err = NewServer(Config{Sessions: reg})
	assert.Error(t, err)
}

func TestHandlers_SessionLifecycle(t *testing.T) {
	g := newTestGateway(t, "")

	info := g.create(t, CreateSessionRequest{Name: "build", Prompt: "hello"})
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "build", info.Name)
	g.waitStatus(t, info.ID, session.StatusCompleted)

	resp := g.do(t, http.MethodGet, "/sessions/"+info.ID+"/output", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[struct {
		Chunks []session.Chunk `json:"chunks"`
	}](t, resp)
	var text string
	for _, c := range out.Chunks {
		if c.Kind == session.ChunkText {
			text += c.Text
		}
	}
	assert.Equal(t, "echo: hello", text)

	resp = g.do(t, http.MethodPost, "/sessions/"+info.ID+"/input", InputRequest{Text: "again"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool {
		got, err := g.reg.Info(info.ID)
		return err == nil && got.Turns == 2 && got.Status == session.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	resp = g.do(t, http.MethodGet, "/sessions", nil)
	list := decodeBody[struct {
		Sessions []session.Info `json:"sessions"`
	}](t, resp)
	require.Len(t, list.Sessions, 1)

	resp = g.do(t, http.MethodDelete, "/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = g.do(t, http.MethodGet, "/sessions/"+info.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, ErrCodeNotFound, errResp.Code)
}

func TestHandlers_ErrorMapping(t *testing.T) {
	g := newTestGateway(t, "")
	info := g.create(t, CreateSessionRequest{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty input", http.MethodPost, "/sessions/" + info.ID + "/input", InputRequest{Text: "  "}, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/sessions/nope/input", InputRequest{Text: "hi"}, http.StatusNotFound},
		{"resume when not paused", http.MethodPost, "/sessions/" + info.ID + "/resume", ResumeRequest{Response: "yes"}, http.StatusConflict},
		{"bad resume response", http.MethodPost, "/sessions/" + info.ID + "/resume", ResumeRequest{Response: "maybe"}, http.StatusBadRequest},
		{"bad authority", http.MethodPut, "/sessions/" + info.ID + "/role", RoleRequest{Name: "r", Authority: "king"}, http.StatusBadRequest},
		{"unwatch unknown session", http.MethodDelete, "/sessions/nope/watch", nil, http.StatusNotFound},
		{"inject without role", http.MethodPost, "/sessions/" + info.ID + "/inject", InputRequest{Text: "hi"}, http.StatusBadRequest},
		{"negative limit", http.MethodGet, "/sessions/" + info.ID + "/output?limit=-1", nil, http.StatusBadRequest},
		{"missing watcher id", http.MethodPost, "/sessions/" + info.ID + "/watchers", WatcherRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := g.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandlers_InvalidJSON(t *testing.T) {
	g := newTestGateway(t, "")

	req, err := http.NewRequest(http.MethodPost, g.http.URL+"/sessions", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_PauseQueryIdle(t *testing.T) {
	g := newTestGateway(t, "")
	info := g.create(t, CreateSessionRequest{})

	resp := g.do(t, http.MethodGet, "/sessions/"+info.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[PauseResponse](t, resp)
	assert.False(t, body.Paused)
	assert.Nil(t, body.Pause)

	resp = g.do(t, http.MethodPost, "/sessions/"+info.ID+"/interrupt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[map[string]string](t, resp)
	assert.Equal(t, string(session.StatusCompleted), st["status"])
}

func TestHandlers_RoleAndWatchers(t *testing.T) {
	g := newTestGateway(t, "")
	parent := g.create(t, CreateSessionRequest{Name: "worker"})
	watcher := g.create(t, CreateSessionRequest{Name: "reviewer"})

	autoInject := false
	resp := g.do(t, http.MethodPut, "/sessions/"+watcher.ID+"/role", RoleRequest{
		Name:       "reviewer",
		Authority:  "supervisor",
		AutoInject: &autoInject,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	role := decodeBody[struct {
		Role session.Role `json:"role"`
	}](t, resp)
	assert.Equal(t, session.AuthoritySupervisor, role.Role.Authority)
	assert.False(t, role.Role.AutoInject)

	resp = g.do(t, http.MethodPost, "/sessions/"+parent.ID+"/watchers", WatcherRequest{WatcherID: watcher.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ws := decodeBody[struct {
		Watchers []string `json:"watchers"`
	}](t, resp)
	assert.Equal(t, []string{watcher.ID}, ws.Watchers)

	// a watcher has at most one parent
	other := g.create(t, CreateSessionRequest{Name: "other"})
	resp = g.do(t, http.MethodPost, "/sessions/"+other.ID+"/watchers", WatcherRequest{WatcherID: watcher.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = g.do(t, http.MethodPost, "/sessions/"+watcher.ID+"/inject", InputRequest{Text: "run the tests"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	g.waitStatus(t, parent.ID, session.StatusCompleted)
	require.Eventually(t, func() bool {
		chunks, err := g.reg.BufferedOutput(parent.ID, 0)
		if err != nil {
			return false
		}
		for _, c := range chunks {
			if c.Kind == session.ChunkWatcherInput {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	resp = g.do(t, http.MethodDelete, "/sessions/"+watcher.ID+"/watch", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = g.do(t, http.MethodDelete, "/sessions/"+watcher.ID+"/role", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = g.do(t, http.MethodGet, "/sessions/"+watcher.ID+"/role", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := decodeBody[map[string]any](t, resp)
	assert.Nil(t, cleared["role"])
}

func TestHandlers_PeerCannotInject(t *testing.T) {
	g := newTestGateway(t, "")
	parent := g.create(t, CreateSessionRequest{})
	peer := g.create(t, CreateSessionRequest{Role: &RoleRequest{Name: "observer"}})

	resp := g.do(t, http.MethodPost, "/sessions/"+parent.ID+"/watchers", WatcherRequest{WatcherID: peer.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = g.do(t, http.MethodPost, "/sessions/"+peer.ID+"/inject", InputRequest{Text: "stop"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_SharedSecret(t *testing.T) {
	g := newTestGateway(t, "s3cret")

	resp := g.do(t, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = g.do(t, http.MethodGet, "/sessions", nil, SecretHeader, "s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// health stays open
	resp = g.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))
}

func TestHandlers_RateLimited(t *testing.T) {
	reg := session.NewRegistry(session.Config{Logger: zerolog.Nop(), NewRunner: echoRunner})
	defer reg.Close()
	srv, err := NewServer(Config{
		Listen:            "127.0.0.1:0",
		Sessions:          reg,
		RequestsPerMinute: 2,
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, err)
	h := srv.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
