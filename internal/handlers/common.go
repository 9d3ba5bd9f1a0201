package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/lehigh-university-libraries/productfinder/internal/source"
	"github.com/lehigh-university-libraries/productfinder/internal/state"
)

// Scheduler queues a pipeline run
type Scheduler interface {
	Schedule() bool
}

// CursorStore persists change cursors per account
type CursorStore interface {
	Cursor(account string) (string, error)
	SetCursor(account, cursor string) error
}

type SnapshotReader interface {
	Snapshot() (models.PublicSnapshot, error)
}

// EntryReader looks up a single catalog entry by image path
type EntryReader interface {
	Get(imagePath string) (models.CatalogEntry, bool, error)
}

type RunLister interface {
	RecentRuns(limit int) ([]state.RunRecord, error)
}

// Listener serves change notifications and the read endpoints of the catalog
type Listener struct {
	Secret    string
	Folder    string
	Client    source.Client // nil when no cloud source is configured
	Cursors   CursorStore
	Scheduler Scheduler
	Snapshots SnapshotReader
	Entries   EntryReader
	Runs      RunLister
	PublicDir string

	// ChangeTimeout bounds how long a notification may spend fetching changes
	ChangeTimeout time.Duration
	Now           func() time.Time
}

// Routes builds the listener's router
func (l *Listener) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/webhook", l.HandleChallenge)
	r.Post("/webhook", l.HandleNotification)
	r.Get("/health", l.HandleHealth)
	r.Get("/healthcheck", l.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", l.HandleSync)
		r.Get("/snapshot", l.HandleSnapshot)
		r.Get("/entries/*", l.HandleEntry)
		r.Get("/runs", l.HandleRuns)
	})

	if l.PublicDir != "" {
		r.Get("/*", l.HandleStatic)
	}
	return r
}

func (l *Listener) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Listener) changeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := l.ChangeTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// Response helpers
func (l *Listener) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (l *Listener) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message, "status", code)
	http.Error(w, message, code)
}
