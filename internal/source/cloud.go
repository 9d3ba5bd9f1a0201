package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// EntryTag is the kind of a cloud listing entry
type EntryTag string

const (
	TagFile    EntryTag = "file"
	TagFolder  EntryTag = "folder"
	TagDeleted EntryTag = "deleted"
)

// Entry is one item of a cloud folder listing
type Entry struct {
	Tag         EntryTag
	Name        string
	PathLower   string
	PathDisplay string
}

// Page is one page of a cloud folder listing
type Page struct {
	Entries []Entry
	HasMore bool
	Cursor  string
}

// Client is the subset of a cloud storage API the pipeline and listener need
type Client interface {
	List(ctx context.Context, path string, recursive bool) (Page, error)
	ListContinue(ctx context.Context, cursor string) (Page, error)
	LatestCursor(ctx context.Context, path string, recursive bool) (string, error)
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// ListAll lists path and follows continuation cursors until the listing is complete.
// It returns every entry once, along with the final cursor.
func ListAll(ctx context.Context, client Client, folder string) ([]Entry, string, error) {
	page, err := client.List(ctx, NormalizeFolder(folder), true)
	if err != nil {
		return nil, "", err
	}
	entries := page.Entries
	for page.HasMore {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		page, err = client.ListContinue(ctx, page.Cursor)
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, page.Entries...)
	}
	return entries, page.Cursor, nil
}

// Changes follows a cursor until no more pages remain and returns the entries seen
// together with the last cursor.
func Changes(ctx context.Context, client Client, cursor string) ([]Entry, string, error) {
	var entries []Entry
	for {
		page, err := client.ListContinue(ctx, cursor)
		if err != nil {
			return entries, cursor, err
		}
		entries = append(entries, page.Entries...)
		if page.Cursor != "" {
			cursor = page.Cursor
		}
		if !page.HasMore {
			return entries, cursor, nil
		}
		if err := ctx.Err(); err != nil {
			return entries, cursor, err
		}
	}
}

// Cloud enumerates product groups in a cloud storage folder
type Cloud struct {
	client Client
}

// NewCloud wraps a cloud storage client
func NewCloud(client Client) *Cloud {
	return &Cloud{client: client}
}

func (c *Cloud) Kind() models.SourceKind {
	return models.SourceCloud
}

// ListCandidates lists root recursively and keeps the first image of each group.
// The group is the first path segment below root; files directly in root form the "root" group.
func (c *Cloud) ListCandidates(ctx context.Context, root string) ([]models.ImageCandidate, error) {
	entries, _, err := ListAll(ctx, c.client, root)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %q: %v", models.ErrSourceUnavailable, root, err)
	}

	seen := map[string]bool{}
	var candidates []models.ImageCandidate
	for _, e := range entries {
		if e.Tag != TagFile || !IsImage(e.Name) {
			continue
		}
		group := GroupOf(root, e.PathLower, e.PathDisplay)
		if seen[group] {
			continue
		}
		seen[group] = true

		p := e.PathDisplay
		if p == "" {
			p = e.PathLower
		}
		candidates = append(candidates, models.ImageCandidate{
			SourceKind:  models.SourceCloud,
			SourcePath:  p,
			DisplayName: e.Name,
			Group:       group,
		})
	}

	slog.Debug("Listed cloud folder", "folder", root, "entries", len(entries), "groups", len(candidates))
	return candidates, nil
}

// Stage downloads the candidate to stagingDir, mirroring its cloud path.
// An existing staged copy is overwritten.
func (c *Cloud) Stage(ctx context.Context, candidate models.ImageCandidate, stagingDir string) (string, error) {
	dst := filepath.Join(stagingDir, filepath.FromSlash(strings.TrimPrefix(candidate.SourcePath, "/")))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	body, err := c.client.Download(ctx, candidate.SourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to download %s: %v", models.ErrSourceUnavailable, candidate.SourcePath, err)
	}
	defer body.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: failed to download %s: %v", models.ErrSourceUnavailable, candidate.SourcePath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}

	slog.Debug("Staged cloud image", "path", candidate.SourcePath, "dst", dst)
	return dst, nil
}

// NormalizeFolder turns a configured folder into the form the cloud API expects:
// "" for the account root, otherwise a single leading slash and no trailing slash.
func NormalizeFolder(folder string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return ""
	}
	return "/" + folder
}

// InFolder reports whether p lies inside folder, ignoring case
func InFolder(folder, p string) bool {
	folder = strings.ToLower(NormalizeFolder(folder))
	if folder == "" {
		return true
	}
	p = strings.ToLower(p)
	return p == folder || strings.HasPrefix(p, folder+"/")
}

// GroupOf returns the first path segment of p below root, using the display path
// for the name when it is available.
func GroupOf(root, pathLower, pathDisplay string) string {
	if pathLower == "" {
		pathLower = strings.ToLower(pathDisplay)
	}
	rel := strings.TrimPrefix(strings.ToLower(pathLower), strings.ToLower(NormalizeFolder(root)))
	rel = strings.TrimPrefix(rel, "/")

	if display := strings.TrimPrefix(pathDisplay, "/"); display != "" && len(display) >= len(rel) &&
		strings.EqualFold(display[len(display)-len(rel):], rel) {
		rel = display[len(display)-len(rel):]
	}

	dir := path.Dir(rel)
	if dir == "." || dir == "" {
		return RootGroup
	}
	if i := strings.Index(dir, "/"); i >= 0 {
		return dir[:i]
	}
	return dir
}
