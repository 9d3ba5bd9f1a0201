package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"photo.jpg", true},
		{"PHOTO.JPEG", true},
		{"scan.Png", true},
		{"anim.gif", true},
		{"old.bmp", true},
		{"new.webp", true},
		{"notes.txt", false},
		{"archive.jpg.zip", false},
		{"noext", false},
		{".jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsImage(tt.name))
		})
	}
}

func TestLocalListCandidates(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "cd-clics", "a.jpg"))
	touch(t, filepath.Join(root, "cd-clics", "b.jpg"))
	touch(t, filepath.Join(root, "libro", "notes.txt"))
	touch(t, filepath.Join(root, "libro", "portada.PNG"))
	touch(t, filepath.Join(root, "vacio", "readme.md"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	touch(t, filepath.Join(root, "loose.jpg"))

	src := NewLocal()
	assert.Equal(t, models.SourceLocal, src.Kind())

	candidates, err := src.ListCandidates(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, models.ImageCandidate{
		SourceKind:  models.SourceLocal,
		SourcePath:  filepath.Join(root, "cd-clics", "a.jpg"),
		DisplayName: "a.jpg",
		Group:       "cd-clics",
	}, candidates[0])
	assert.Equal(t, "libro", candidates[1].Group)
	assert.Equal(t, "portada.PNG", candidates[1].DisplayName)
}

func TestLocalListCandidatesMissingRoot(t *testing.T) {
	_, err := NewLocal().ListCandidates(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestLocalStage(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "g", "a.jpg")
	touch(t, p)

	src := NewLocal()
	got, err := src.Stage(context.Background(), models.ImageCandidate{SourcePath: p}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// staging twice is harmless
	got, err = src.Stage(context.Background(), models.ImageCandidate{SourcePath: p}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = src.Stage(context.Background(), models.ImageCandidate{SourcePath: filepath.Join(root, "missing.jpg")}, t.TempDir())
	assert.ErrorIs(t, err, models.ErrImageUnreadable)
}
