// Package httpapi serves the client-facing surface: the streaming research
// websocket, the synchronous /ws/ask endpoint, and the /ws/connections
// monitoring endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/registry"
	"github.com/quarrylabs/inquest/internal/session"
)

const (
	// readIdleTimeout bounds how long a connection may stay silent. It is
	// reset before every read; server pings keep intermediaries from cutting
	// the connection in the meantime.
	readIdleTimeout = 10 * time.Minute
	pingInterval    = 20 * time.Second
	pingWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Dev-friendly, secure via proxy in prod
}

// Runner executes one pipeline run. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, sess *session.Session, sink events.Sink) error
}

// Handler serves the research API.
type Handler struct {
	runner   Runner
	registry *registry.Registry
	logger   *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(runner Runner, reg *registry.Registry, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, registry: reg, logger: logger}
}

// RegisterRoutes registers all API endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/research", h.handleResearchWS)
	mux.HandleFunc("/ws/connections", h.handleConnections)
	mux.HandleFunc("/ws/ask", h.handleAsk)
}

// inboundMessage is a decoded client frame. Anything that does not match one
// of the known types is answered with an error event naming the type.
type inboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleResearchWS runs the per-connection receive loop. One pipeline run is
// active at a time: the loop does not read the next frame until the current
// run reaches its terminal event. The registry entry is removed on every exit
// path.
func (h *Handler) handleResearchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := uuid.NewString()
	h.registry.Register(id, r.RemoteAddr)
	defer h.registry.Unregister(id)
	defer conn.Close()

	logger := h.logger.With(zap.String("connection_id", id))
	sink := newSocketSink(conn)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	})

	// Server-side keepalive pings; WriteControl is safe alongside the sink's
	// data writes.
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				deadline := time.Now().Add(pingWriteWait)
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("Connection closed unexpectedly", zap.Error(err))
			} else {
				logger.Info("Connection closed")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// The frame itself arrived intact, so this is recoverable:
			// report it and keep the connection.
			if h.sendError(sink, "invalid message: expected a JSON object") != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "question":
			question := strings.TrimSpace(msg.Content)
			if question == "" {
				if h.sendError(sink, "question must not be empty") != nil {
					return
				}
				continue
			}
			logger.Info("Question received", zap.Int("length", len(question)))
			sess := session.New(question)
			if err := h.runner.Run(r.Context(), sess, sink); err != nil {
				if errors.Is(err, events.ErrSinkClosed) {
					logger.Info("Peer disconnected mid-run")
					return
				}
				// The run already emitted its terminal error event; the
				// connection stays open for the next question.
				logger.Warn("Run failed", zap.Error(err))
			}

		case "ping":
			if sink.Send(events.Event{Type: events.TypePong, Stage: events.StageHeartbeat}) != nil {
				return
			}

		default:
			if h.sendError(sink, fmt.Sprintf("unknown message type: %s", msg.Type)) != nil {
				return
			}
		}
	}
}

func (h *Handler) sendError(sink events.Sink, msg string) error {
	return sink.Send(events.Event{
		Type:    events.TypeError,
		Content: msg,
		Stage:   events.StageError,
	})
}
