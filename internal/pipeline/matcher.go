package pipeline

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// DedupMode selects how candidates are matched against existing catalog entries
type DedupMode string

const (
	// DedupLegacy matches on storage path, public path or file name containment
	DedupLegacy DedupMode = "legacy"
	// DedupCanonical matches on the storage path only
	DedupCanonical DedupMode = "canonical"

	cloudPrefix       = "dropbox"
	defaultLocalLabel = "images"
	publicImagesDir   = "images"
)

// ParseDedupMode accepts "legacy" or "canonical"; empty means legacy
func ParseDedupMode(s string) (DedupMode, error) {
	switch DedupMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupLegacy:
		return DedupLegacy, nil
	case DedupCanonical:
		return DedupCanonical, nil
	default:
		return "", fmt.Errorf("unknown dedup mode %q", s)
	}
}

// Identity is the set of keys a candidate can be recognized by in the catalog
type Identity struct {
	StoragePath string // written as the entry's imagePath
	PublicPath  string // path the frontend serves the image under
	FileName    string
}

// IdentityFor derives a candidate's identity. Local candidates are keyed under the
// base name of the source root, cloud candidates under "dropbox".
func IdentityFor(candidate models.ImageCandidate, root string) Identity {
	prefix := cloudPrefix
	if candidate.SourceKind == models.SourceLocal {
		prefix = localLabel(root)
	}
	return Identity{
		StoragePath: path.Join(prefix, candidate.Group, candidate.DisplayName),
		PublicPath:  path.Join(publicImagesDir, candidate.Group, candidate.DisplayName),
		FileName:    candidate.DisplayName,
	}
}

func localLabel(root string) string {
	base := filepath.Base(filepath.Clean(root))
	if base == "." || base == string(filepath.Separator) || base == "" {
		if abs, err := filepath.Abs(root); err == nil {
			base = filepath.Base(abs)
		}
	}
	if base == "." || base == string(filepath.Separator) || base == "" {
		return defaultLocalLabel
	}
	return base
}

// Matcher finds the catalog entry a candidate has already been processed as
type Matcher struct {
	Mode DedupMode
}

// Match returns the index of the matching entry, or -1. Exact path matches are
// preferred over file name containment.
func (m Matcher) Match(catalog models.Catalog, id Identity) int {
	if i := catalog.Find(id.StoragePath); i >= 0 {
		return i
	}
	if m.Mode == DedupCanonical {
		return -1
	}

	if i := catalog.Find(id.PublicPath); i >= 0 {
		return i
	}
	if id.FileName == "" {
		return -1
	}
	for i, e := range catalog.Entries {
		if strings.Contains(e.ImagePath, id.FileName) {
			return i
		}
	}
	return -1
}
