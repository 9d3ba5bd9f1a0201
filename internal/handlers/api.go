package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type healthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	MonitoredFolder string `json:"monitoredFolder"`
}

func (l *Listener) HandleHealth(w http.ResponseWriter, r *http.Request) {
	folder := l.Folder
	if folder == "" {
		folder = "root"
	}
	l.writeJSON(w, http.StatusOK, healthResponse{
		Status:          "healthy",
		Timestamp:       l.now().UTC().Format(time.RFC3339),
		MonitoredFolder: folder,
	})
}

// HandleSync queues a manual run
func (l *Listener) HandleSync(w http.ResponseWriter, r *http.Request) {
	queued := l.Scheduler.Schedule()
	l.writeJSON(w, http.StatusAccepted, map[string]bool{
		"scheduled": true,
		"queued":    queued,
	})
}

func (l *Listener) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if l.Snapshots == nil {
		l.writeError(w, "Snapshot not available", http.StatusNotFound)
		return
	}
	snapshot, err := l.Snapshots.Snapshot()
	if err != nil {
		l.writeError(w, "Unable to read snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	l.writeJSON(w, http.StatusOK, snapshot)
}

// HandleEntry returns the catalog entry whose imagePath is the rest of the URL
func (l *Listener) HandleEntry(w http.ResponseWriter, r *http.Request) {
	if l.Entries == nil {
		l.writeError(w, "Catalog not available", http.StatusNotFound)
		return
	}

	imagePath := chi.URLParam(r, "*")
	if imagePath == "" {
		l.writeError(w, "Image path required", http.StatusBadRequest)
		return
	}

	entry, ok, err := l.Entries.Get(imagePath)
	if err != nil {
		l.writeError(w, "Unable to read catalog: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		l.writeError(w, "Entry not found", http.StatusNotFound)
		return
	}
	l.writeJSON(w, http.StatusOK, entry)
}

func (l *Listener) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if l.Runs == nil {
		l.writeError(w, "Run history not available", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			l.writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := l.Runs.RecentRuns(limit)
	if err != nil {
		l.writeError(w, "Unable to read run history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	l.writeJSON(w, http.StatusOK, runs)
}
