package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleStatic serves the public directory the frontend reads: the snapshot under
// data/ and anything else published next to it.
func (l *Listener) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	if path == "" {
		path = "index.html"
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(path, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, filepath.Join(l.PublicDir, filepath.FromSlash(path)))
}
