// Package api provides HTTP handlers for serving generated bundles.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// FilesHandler exposes the files directory for bundle downloads. The
// collaborator contract is minimal: map a stable filename to a byte
// stream.
type FilesHandler struct {
	dir string
}

// NewFilesHandler creates a handler serving files from dir.
func NewFilesHandler(dir string) *FilesHandler {
	return &FilesHandler{dir: dir}
}

// RegisterRoutes attaches the download routes to the router.
func (h *FilesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/files/{filename}", h.serveFile)
}

func (h *FilesHandler) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		Error(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		Error(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
