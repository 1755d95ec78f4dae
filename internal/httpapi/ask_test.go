package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/registry"
	"github.com/quarrylabs/inquest/internal/session"
)

type runnerFunc func(ctx context.Context, sess *session.Session, sink events.Sink) error

func (f runnerFunc) Run(ctx context.Context, sess *session.Session, sink events.Sink) error {
	return f(ctx, sess, sink)
}

func newAskServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(runner, registry.New(zap.NewNop()), zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAskReturnsSessionState(t *testing.T) {
	srv := newAskServer(t, runnerFunc(func(ctx context.Context, sess *session.Session, sink events.Sink) error {
		sess.SetPlan([]string{"sub-a", "sub-b"})
		sess.SetDrafts([]string{"draft-a", "draft-b"})
		sess.SetReport("the report")
		sess.AddMessage(session.RoleAssistant, "done")
		return nil
	}))

	resp, err := http.Post(srv.URL+"/ws/ask", "application/json",
		strings.NewReader(`{"question":"why is the sky blue?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body askResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, []string{"sub-a", "sub-b"}, body.Result.Plan)
	assert.Equal(t, []string{"draft-a", "draft-b"}, body.Result.Drafts)
	assert.Equal(t, "the report", body.Result.Report)
	assert.Equal(t, []string{"why is the sky blue?", "done"}, body.Result.Messages)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	ran := false
	srv := newAskServer(t, runnerFunc(func(ctx context.Context, sess *session.Session, sink events.Sink) error {
		ran = true
		return nil
	}))

	resp, err := http.Post(srv.URL+"/ws/ask", "application/json", strings.NewReader(`{"question":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "question must not be empty", body["error"])
	assert.False(t, ran)
}

func TestAskRejectsBadJSON(t *testing.T) {
	srv := newAskServer(t, runnerFunc(func(ctx context.Context, sess *session.Session, sink events.Sink) error {
		return nil
	}))

	resp, err := http.Post(srv.URL+"/ws/ask", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAskMethodNotAllowed(t *testing.T) {
	srv := newAskServer(t, runnerFunc(func(ctx context.Context, sess *session.Session, sink events.Sink) error {
		return nil
	}))

	resp, err := http.Get(srv.URL + "/ws/ask")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAskSurfacesRunError(t *testing.T) {
	srv := newAskServer(t, runnerFunc(func(ctx context.Context, sess *session.Session, sink events.Sink) error {
		return errors.New("upstream unavailable")
	}))

	resp, err := http.Post(srv.URL+"/ws/ask", "application/json", strings.NewReader(`{"question":"q"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "research failed: upstream unavailable", body["error"])
}

func TestConnectionsEndpoint(t *testing.T) {
	reg := registry.New(zap.NewNop())
	reg.Register("conn-1", "10.0.0.1:1")
	mux := http.NewServeMux()
	NewHandler(runnerFunc(func(ctx context.Context, sess *session.Session, sink events.Sink) error {
		return nil
	}), reg, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/ws/connections")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ActiveConnections int      `json:"active_connections"`
		Connections       []string `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.ActiveConnections)
	assert.Equal(t, []string{"conn-1"}, body.Connections)
}
