package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler serves a built catalog directory for local review.
type Handler struct {
	dir string
}

func New(dir string) *Handler {
	return &Handler{dir: dir}
}

// Routes returns the dev server router. Nothing it serves is cacheable.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(NoStore)

	r.Get("/healthcheck", h.HandleHealthcheck)
	r.Get("/*", h.HandleStatic)
	return r
}

// NoStore disables every layer of browser caching.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write healthcheck", "err", err)
	}
}

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		h.writeError(w, r, "Invalid file path", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.dir, filepath.FromSlash(path))
	f, err := os.Open(fullPath)
	if err != nil {
		h.writeError(w, r, "Not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.writeError(w, r, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", ContentType(path))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// ContentType picks a media type from the file extension.
func ContentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
