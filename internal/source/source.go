// Package source enumerates product groups and stages their representative images.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// RootGroup names the group of files that sit directly in the monitored root
const RootGroup = "root"

// Source lists one representative image per product group and makes it available locally
type Source interface {
	Kind() models.SourceKind
	ListCandidates(ctx context.Context, root string) ([]models.ImageCandidate, error)
	Stage(ctx context.Context, candidate models.ImageCandidate, stagingDir string) (string, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsImage reports whether name has a supported image extension, ignoring case
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}
