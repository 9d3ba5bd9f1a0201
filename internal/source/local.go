package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// Local treats each immediate subdirectory of root as a product group
type Local struct{}

// NewLocal returns a local filesystem source
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Kind() models.SourceKind {
	return models.SourceLocal
}

// ListCandidates returns the first image, in directory order, of every group under root.
// Groups without images and files sitting directly in root are skipped.
func (l *Local) ListCandidates(ctx context.Context, root string) ([]models.ImageCandidate, error) {
	groups, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", models.ErrSourceUnavailable, root, err)
	}

	var candidates []models.ImageCandidate
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !group.IsDir() {
			continue
		}

		dir := filepath.Join(root, group.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn("Skipping unreadable group", "group", group.Name(), "err", err)
			continue
		}

		found := false
		for _, f := range files {
			if f.IsDir() || !IsImage(f.Name()) {
				continue
			}
			candidates = append(candidates, models.ImageCandidate{
				SourceKind:  models.SourceLocal,
				SourcePath:  filepath.Join(dir, f.Name()),
				DisplayName: f.Name(),
				Group:       group.Name(),
			})
			found = true
			break
		}
		if !found {
			slog.Debug("No images in group", "group", group.Name())
		}
	}

	return candidates, nil
}

// Stage is a no-op for local files: the image already lives on disk
func (l *Local) Stage(ctx context.Context, candidate models.ImageCandidate, stagingDir string) (string, error) {
	if _, err := os.Stat(candidate.SourcePath); err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrImageUnreadable, candidate.SourcePath, err)
	}
	return candidate.SourcePath, nil
}
