package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// Watcher reports image changes under a local root and its group directories
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
}

// NewWatcher watches root and every directory directly below it
func NewWatcher(root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{root: root, watcher: fw}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("%w: failed to watch %s: %v", models.ErrSourceUnavailable, root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(filepath.Join(root, e.Name()))
		}
	}
	return w, nil
}

// Run calls onChange for every relevant event until ctx is cancelled or the watcher fails
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleEvent(event); ok {
				onChange(path)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "root", w.root, "err", err)
		}
	}
}

// handleEvent starts watching new group directories and reports whether event
// touched an image inside a group.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return "", false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if filepath.Dir(event.Name) == filepath.Clean(w.root) {
				w.addDir(event.Name)
			}
			return "", false
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	if !IsImage(event.Name) {
		return "", false
	}
	// files directly in root are not part of any group
	if filepath.Dir(filepath.Dir(event.Name)) != filepath.Clean(w.root) {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) addDir(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		slog.Warn("Failed to watch group directory", "dir", dir, "err", err)
		return
	}
	slog.Debug("Watching group directory", "dir", dir)
}
