package handlers

import (
	"log/slog"
	"net/http"
)

// Response helpers
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, message string, code int) {
	slog.Debug(message, "path", r.URL.Path, "status", code)
	http.Error(w, message, code)
}
