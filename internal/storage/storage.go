package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// CatalogStore persists the catalog and its public snapshot.
// All writes go through one mutex so there is a single writer per process.
type CatalogStore struct {
	catalogPath  string
	snapshotPath string
	mu           sync.RWMutex

	// Now stamps snapshots; tests replace it
	Now func() time.Time
}

func New(catalogPath, snapshotPath string) *CatalogStore {
	return &CatalogStore{
		catalogPath:  catalogPath,
		snapshotPath: snapshotPath,
		Now:          time.Now,
	}
}

// Load reads the catalog. A missing file is an empty catalog.
func (s *CatalogStore) Load() (models.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *CatalogStore) load() (models.Catalog, error) {
	data, err := os.ReadFile(s.catalogPath)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Catalog{}, nil
	}
	if err != nil {
		return models.Catalog{}, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog models.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return models.Catalog{}, fmt.Errorf("failed to parse catalog %s: %w", s.catalogPath, err)
	}
	return catalog, nil
}

func (s *CatalogStore) Get(imagePath string) (models.CatalogEntry, bool, error) {
	catalog, err := s.Load()
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	i := catalog.Find(imagePath)
	if i < 0 {
		return models.CatalogEntry{}, false, nil
	}
	return catalog.Entries[i], true, nil
}

func (s *CatalogStore) All() ([]models.CatalogEntry, error) {
	catalog, err := s.Load()
	if err != nil {
		return nil, err
	}
	return catalog.Entries, nil
}

// Upsert replaces the entry with the same image path, keeping its position, or
// appends it. The catalog is written first; the snapshot is only rebuilt once the
// catalog write succeeded. A snapshot failure returns ErrSnapshotPublishFailed with
// the entry already saved.
func (s *CatalogStore) Upsert(entry models.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrCatalogWriteFailed, err)
	}

	replaced := catalog.Upsert(entry)
	if err := writeJSONAtomic(s.catalogPath, catalog); err != nil {
		return fmt.Errorf("%w: %v", models.ErrCatalogWriteFailed, err)
	}
	slog.Debug("Saved catalog entry", "image", entry.ImagePath, "replaced", replaced, "count", len(catalog.Entries))

	return s.publish(catalog)
}

// Republish rebuilds the public snapshot from the catalog on disk
func (s *CatalogStore) Republish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrCatalogWriteFailed, err)
	}
	return s.publish(catalog)
}

func (s *CatalogStore) publish(catalog models.Catalog) error {
	snapshot := models.NewSnapshot(catalog, s.Now())
	if err := writeJSONAtomic(s.snapshotPath, snapshot); err != nil {
		return fmt.Errorf("%w: %v", models.ErrSnapshotPublishFailed, err)
	}
	slog.Debug("Published snapshot", "path", s.snapshotPath, "count", snapshot.Count)
	return nil
}

// Snapshot returns the published snapshot, or a fresh projection of the catalog
// when nothing has been published yet.
func (s *CatalogStore) Snapshot() (models.PublicSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		catalog, err := s.load()
		if err != nil {
			return models.PublicSnapshot{}, err
		}
		return models.NewSnapshot(catalog, s.Now()), nil
	}
	if err != nil {
		return models.PublicSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot models.PublicSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return models.PublicSnapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snapshot, nil
}

// writeJSONAtomic writes v to a temp file next to path and renames it into place,
// so readers see either the old or the new document.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
