package source

import (
	"context"
	"fmt"
	"io"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
)

// Dropbox adapts the Dropbox files API to Client
type Dropbox struct {
	files files.Client
}

// NewDropbox returns a Dropbox client authenticated with a long-lived access token
func NewDropbox(token string) *Dropbox {
	cfg := dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogOff,
	}
	return &Dropbox{files: files.New(cfg)}
}

func (d *Dropbox) List(ctx context.Context, path string, recursive bool) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	arg := files.NewListFolderArg(path)
	arg.Recursive = recursive
	res, err := d.files.ListFolder(arg)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list folder %q: %w", path, err)
	}
	return toPage(res), nil
}

func (d *Dropbox) ListContinue(ctx context.Context, cursor string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	res, err := d.files.ListFolderContinue(files.NewListFolderContinueArg(cursor))
	if err != nil {
		return Page{}, fmt.Errorf("failed to continue folder listing: %w", err)
	}
	return toPage(res), nil
}

func (d *Dropbox) LatestCursor(ctx context.Context, path string, recursive bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	arg := files.NewListFolderArg(path)
	arg.Recursive = recursive
	res, err := d.files.ListFolderGetLatestCursor(arg)
	if err != nil {
		return "", fmt.Errorf("failed to get latest cursor for %q: %w", path, err)
	}
	return res.Cursor, nil
}

func (d *Dropbox) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, content, err := d.files.Download(files.NewDownloadArg(path))
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", path, err)
	}
	return content, nil
}

func toPage(res *files.ListFolderResult) Page {
	page := Page{HasMore: res.HasMore, Cursor: res.Cursor}
	for _, m := range res.Entries {
		switch e := m.(type) {
		case *files.FileMetadata:
			page.Entries = append(page.Entries, Entry{Tag: TagFile, Name: e.Name, PathLower: e.PathLower, PathDisplay: e.PathDisplay})
		case *files.FolderMetadata:
			page.Entries = append(page.Entries, Entry{Tag: TagFolder, Name: e.Name, PathLower: e.PathLower, PathDisplay: e.PathDisplay})
		case *files.DeletedMetadata:
			page.Entries = append(page.Entries, Entry{Tag: TagDeleted, Name: e.Name, PathLower: e.PathLower, PathDisplay: e.PathDisplay})
		}
	}
	return page
}
