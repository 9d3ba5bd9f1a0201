// Package pipeline runs candidates from a source through classification and
// marketplace resolution into the catalog.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/lehigh-university-libraries/productfinder/internal/source"
	"github.com/lehigh-university-libraries/productfinder/internal/vision"
)

// Store is the catalog the orchestrator reads and upserts into
type Store interface {
	Load() (models.Catalog, error)
	Upsert(entry models.CatalogEntry) error
}

type Normalizer interface {
	Normalize(src, dst string) (string, error)
}

type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType string) (models.ProductMetadata, error)
}

type Resolver interface {
	Resolve(ctx context.Context, meta models.ProductMetadata) ([]models.ListingResult, error)
}

// ItemStatus is the outcome for one candidate
type ItemStatus string

const (
	StatusProcessed ItemStatus = "processed"
	StatusCached    ItemStatus = "cached"
	StatusFailed    ItemStatus = "failed"
)

// ItemResult records what happened to one candidate during a run
type ItemResult struct {
	Group     string                 `json:"group"`
	Image     string                 `json:"image"`
	ImagePath string                 `json:"imagePath"`
	Status    ItemStatus             `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Metadata  models.ProductMetadata `json:"productMetadata"`
	Listings  []models.ListingResult `json:"listings"`
}

// Report summarizes a run
type Report struct {
	RunID      string            `json:"runId"`
	Source     models.SourceKind `json:"source"`
	Started    time.Time         `json:"started"`
	Finished   time.Time         `json:"finished"`
	Candidates int               `json:"candidates"`
	Processed  int               `json:"processed"`
	Cached     int               `json:"cached"`
	Failed     int               `json:"failed"`
	Items      []ItemResult      `json:"items"`
}

// Orchestrator processes a source's candidates strictly one at a time
type Orchestrator struct {
	Source     source.Source
	Store      Store
	Normalizer Normalizer
	Classifier Classifier
	Resolver   Resolver
	Matcher    Matcher
	StagingDir string

	Now   func() time.Time
	NewID func() string

	mu sync.Mutex
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run enumerates root and processes every candidate in order. It returns an error
// only when the run as a whole cannot proceed; failed items are counted in the report.
// Cancelling ctx stops the run after the item in flight. Concurrent calls fail
// with ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context, root string) (*Report, error) {
	if !o.mu.TryLock() {
		return &Report{Items: []ItemResult{}}, models.ErrRunInProgress
	}
	defer o.mu.Unlock()

	runID := uuid.NewString()
	if o.NewID != nil {
		runID = o.NewID()
	}
	report := &Report{
		RunID:   runID,
		Source:  o.Source.Kind(),
		Started: o.now(),
		Items:   []ItemResult{},
	}
	defer func() { report.Finished = o.now() }()

	slog.Info("Starting run", "run_id", runID, "source", report.Source, "root", root)

	candidates, err := o.Source.ListCandidates(ctx, root)
	if err != nil {
		return report, fmt.Errorf("failed to list candidates: %w", err)
	}
	report.Candidates = len(candidates)

	catalog, err := o.Store.Load()
	if err != nil {
		return report, fmt.Errorf("failed to load catalog: %w", err)
	}

	stagingDir := o.StagingDir
	if stagingDir == "" {
		stagingDir = filepath.Join(os.TempDir(), "productfinder-"+runID)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			slog.Warn("Failed to clean up staging directory", "run_id", runID, "dir", stagingDir, "err", err)
		}
	}()

	for _, c := range candidates {
		if ctx.Err() != nil {
			slog.Warn("Run interrupted", "run_id", runID, "remaining", report.Candidates-len(report.Items))
			break
		}

		// an item that has started is finished even if the run is being stopped
		item := o.processOne(context.WithoutCancel(ctx), runID, root, stagingDir, c, &catalog)
		report.Items = append(report.Items, item)
		switch item.Status {
		case StatusProcessed:
			report.Processed++
		case StatusCached:
			report.Cached++
		case StatusFailed:
			report.Failed++
		}
	}

	slog.Info("Run finished",
		"run_id", runID,
		"candidates", report.Candidates,
		"processed", report.Processed,
		"cached", report.Cached,
		"failed", report.Failed)
	return report, nil
}

func (o *Orchestrator) processOne(ctx context.Context, runID, root, stagingDir string, c models.ImageCandidate, catalog *models.Catalog) ItemResult {
	id := IdentityFor(c, root)
	item := ItemResult{Group: c.Group, Image: c.DisplayName, ImagePath: id.StoragePath}
	log := slog.With("run_id", runID, "group", c.Group, "image", c.DisplayName)

	if i := o.Matcher.Match(*catalog, id); i >= 0 {
		existing := catalog.Entries[i]
		log.Info("Already processed, reusing catalog entry", "imagePath", existing.ImagePath)
		item.Status = StatusCached
		item.ImagePath = existing.ImagePath
		item.Metadata = existing.ProductMetadata
		item.Listings = existing.Listings
		return item
	}

	fail := func(step string, err error) ItemResult {
		log.Error("Failed to process image", "step", step, "err", err)
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}

	staged, err := o.Source.Stage(ctx, c, stagingDir)
	if err != nil {
		return fail("stage", err)
	}
	c.LocalStagingPath = staged

	normalized, err := o.Normalizer.Normalize(staged, filepath.Join(stagingDir, "normalized", c.Group, c.DisplayName))
	if err != nil {
		return fail("normalize", err)
	}

	data, err := os.ReadFile(normalized)
	if err != nil {
		return fail("normalize", fmt.Errorf("%w: %v", models.ErrImageUnreadable, err))
	}

	meta, err := o.Classifier.Classify(ctx, data, vision.MIMETypeFor(normalized))
	if err != nil {
		return fail("classify", err)
	}
	if !meta.Usable() {
		return fail("classify", fmt.Errorf("%w: missing category or title", models.ErrClassificationFailed))
	}
	item.Metadata = meta
	log.Info("Classified product", "category", meta.Category, "title", meta.Title)

	listings, err := o.Resolver.Resolve(ctx, meta)
	if err != nil {
		return fail("resolve", err)
	}
	if listings == nil {
		listings = []models.ListingResult{}
	}
	if len(listings) > models.MaxListings {
		listings = listings[:models.MaxListings]
	}
	item.Listings = listings

	entry := models.CatalogEntry{
		ImagePath:       id.StoragePath,
		ProductMetadata: meta,
		Timestamp:       o.now().UTC(),
		Listings:        listings,
	}
	if err := o.Store.Upsert(entry); err != nil {
		if !errors.Is(err, models.ErrSnapshotPublishFailed) {
			return fail("save", err)
		}
		log.Warn("Entry saved but snapshot not refreshed", "err", err)
	}
	catalog.Upsert(entry)

	log.Info("Saved catalog entry", "imagePath", entry.ImagePath, "listings", len(listings))
	item.Status = StatusProcessed
	return item
}
