package httpapi

import "net/http"

// handleConnections reports the currently registered connections. Read-only;
// used for monitoring.
func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_connections": h.registry.Count(),
		"connections":        h.registry.IDs(),
	})
}
