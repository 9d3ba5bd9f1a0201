package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherHandleEvent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "CD1"), 0755))

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.watcher.Close()

	tests := []struct {
		name      string
		path      string
		operation fsnotify.Op
		expected  bool
	}{
		{"create image in group", filepath.Join(root, "CD1", "tapa.jpg"), fsnotify.Create, true},
		{"write image in group", filepath.Join(root, "CD1", "tapa.PNG"), fsnotify.Write, true},
		{"rename image in group", filepath.Join(root, "CD1", "tapa.webp"), fsnotify.Rename, true},
		{"remove image", filepath.Join(root, "CD1", "tapa.jpg"), fsnotify.Remove, false},
		{"chmod image", filepath.Join(root, "CD1", "tapa.jpg"), fsnotify.Chmod, false},
		{"non image", filepath.Join(root, "CD1", "notes.txt"), fsnotify.Create, false},
		{"hidden file", filepath.Join(root, "CD1", ".tapa.jpg"), fsnotify.Create, false},
		{"image directly in root", filepath.Join(root, "suelta.jpg"), fsnotify.Create, false},
		{"image nested too deep", filepath.Join(root, "CD1", "extra", "tapa.jpg"), fsnotify.Create, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := w.handleEvent(fsnotify.Event{Name: tt.path, Op: tt.operation})
			assert.Equal(t, tt.expected, ok)
			if tt.expected {
				assert.Equal(t, tt.path, path)
			}
		})
	}
}

func TestWatcherNewGroupDirectoryIsNotAChange(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.watcher.Close()

	dir := filepath.Join(root, "Libro")
	require.NoError(t, os.Mkdir(dir, 0755))

	_, ok := w.handleEvent(fsnotify.Event{Name: dir, Op: fsnotify.Create})
	assert.False(t, ok)
	assert.Contains(t, w.watcher.WatchList(), dir)
}

func TestWatcherMissingRoot(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(string) {})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
