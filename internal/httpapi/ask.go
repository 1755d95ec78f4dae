package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/quarrylabs/inquest/internal/events"
	"github.com/quarrylabs/inquest/internal/session"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResult struct {
	Plan     []string `json:"plan"`
	Drafts   []string `json:"drafts"`
	Report   string   `json:"report"`
	Messages []string `json:"messages"`
}

type askResponse struct {
	Success bool      `json:"success"`
	Result  askResult `json:"result"`
}

// handleAsk is the non-streaming convenience endpoint: it runs the full
// pipeline with events buffered away and returns the accumulated session
// state in one response.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		h.writeJSONError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	sess := session.New(question)
	if err := h.runner.Run(r.Context(), sess, events.NewCollector()); err != nil {
		h.logger.Warn("Synchronous run failed", zap.Error(err))
		h.writeJSONError(w, http.StatusInternalServerError, "research failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, askResponse{
		Success: true,
		Result: askResult{
			Plan:     sess.Plan,
			Drafts:   sess.Drafts,
			Report:   sess.Report,
			Messages: sess.MessageContents(),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
