package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/registry"
	"github.com/quarrylabs/inquest/internal/session"
)

// fakeRunner emits a scripted event sequence and optionally fails.
type fakeRunner struct {
	calls  atomic.Int64
	script []events.Event
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, sess *session.Session, sink events.Sink) error {
	f.calls.Add(1)
	for _, ev := range f.script {
		if err := sink.Send(ev); err != nil {
			return err
		}
	}
	return f.err
}

type wsFixture struct {
	conn     *websocket.Conn
	registry *registry.Registry
	runner   *fakeRunner
}

func newWSFixture(t *testing.T, runner *fakeRunner) *wsFixture {
	t.Helper()
	reg := registry.New(zap.NewNop())
	mux := http.NewServeMux()
	NewHandler(runner, reg, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/research"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &wsFixture{conn: conn, registry: reg, runner: runner}
}

func (f *wsFixture) readEvent(t *testing.T) events.Event {
	t.Helper()
	require.NoError(t, f.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, f.conn.ReadJSON(&ev))
	return ev
}

func TestEmptyQuestionRejectedWithoutRun(t *testing.T) {
	f := newWSFixture(t, &fakeRunner{})
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "question", "content": "   "}))

	ev := f.readEvent(t)
	assert.Equal(t, events.TypeError, ev.Type)
	assert.Equal(t, events.StageError, ev.Stage)
	assert.Equal(t, int64(0), f.runner.calls.Load(), "pipeline must not start for an empty question")
}

func TestPingAnsweredWithPong(t *testing.T) {
	f := newWSFixture(t, &fakeRunner{})
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "ping"}))

	ev := f.readEvent(t)
	assert.Equal(t, events.TypePong, ev.Type)
	assert.Equal(t, events.StageHeartbeat, ev.Stage)
	assert.Equal(t, int64(0), f.runner.calls.Load())
}

func TestUnknownMessageType(t *testing.T) {
	f := newWSFixture(t, &fakeRunner{})
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "foo"}))

	ev := f.readEvent(t)
	assert.Equal(t, events.TypeError, ev.Type)
	assert.Equal(t, "unknown message type: foo", ev.Content)
	assert.Equal(t, events.StageError, ev.Stage)
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	f := newWSFixture(t, &fakeRunner{})
	require.NoError(t, f.conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	ev := f.readEvent(t)
	assert.Equal(t, events.TypeError, ev.Type)

	// Connection survives the bad frame.
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, events.TypePong, f.readEvent(t).Type)
}

func TestQuestionStreamsRunEvents(t *testing.T) {
	runner := &fakeRunner{
		script: []events.Event{
			{Type: events.TypeStart, Content: "Analyzing your question...", Stage: events.StageStart},
			{Type: events.TypePlan, Content: "narration", Stage: events.StagePlan},
			{Type: events.TypeComplete, Content: "Research complete.", Stage: events.StageComplete},
		},
	}
	f := newWSFixture(t, runner)
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "question", "content": "why?"}))

	assert.Equal(t, events.TypeStart, f.readEvent(t).Type)
	assert.Equal(t, events.TypePlan, f.readEvent(t).Type)
	assert.Equal(t, events.TypeComplete, f.readEvent(t).Type)
}

func TestRunFailureKeepsConnectionForNextQuestion(t *testing.T) {
	runner := &fakeRunner{
		script: []events.Event{
			{Type: events.TypeStart, Stage: events.StageStart},
			{Type: events.TypeError, Content: "research failed: upstream", Stage: events.StageError},
		},
		err: assert.AnError,
	}
	f := newWSFixture(t, runner)
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "question", "content": "q"}))

	assert.Equal(t, events.TypeStart, f.readEvent(t).Type)
	assert.Equal(t, events.TypeError, f.readEvent(t).Type)

	// The connection stays registered and accepts a following question.
	require.NoError(t, f.conn.WriteJSON(map[string]string{"type": "question", "content": "again"}))
	assert.Equal(t, events.TypeStart, f.readEvent(t).Type)
	assert.Equal(t, int64(2), f.runner.calls.Load())
	assert.Equal(t, 1, f.registry.Count())
}

func TestRegistryCleanupOnDisconnect(t *testing.T) {
	f := newWSFixture(t, &fakeRunner{})

	require.Eventually(t, func() bool { return f.registry.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	f.conn.Close()
	require.Eventually(t, func() bool { return f.registry.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}
