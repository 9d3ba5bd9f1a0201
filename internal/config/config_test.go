package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "images", cfg.ImagesDir)
	assert.Equal(t, "data/products.json", cfg.CatalogPath)
	assert.Equal(t, 2*time.Second, cfg.Webhook.Debounce)
	assert.Equal(t, "root", cfg.MonitoredFolder())
	assert.NoError(t, cfg.Validate())
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := `images_dir: photos
dedup_mode: canonical
dropbox:
  folder: /products
webhook:
  port: "4000"
  debounce: 5s
marketplace:
  timeout: 12s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("WEBHOOK_PORT", "5000")
	t.Setenv("USE_DROPBOX", "true")
	t.Setenv("DROPBOX_ACCESS_TOKEN", "tok")
	t.Setenv("MARKETPLACE_RPS", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "photos", cfg.ImagesDir)
	assert.Equal(t, "canonical", cfg.DedupMode)
	assert.Equal(t, "/products", cfg.MonitoredFolder())
	assert.Equal(t, "5000", cfg.Webhook.Port)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Debounce)
	assert.Equal(t, 12*time.Second, cfg.Marketplace.Timeout)
	assert.Equal(t, 0.5, cfg.Marketplace.RequestsPerSecond)
	assert.True(t, cfg.Dropbox.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEBOUNCE", "soon")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DedupMode = "fuzzy"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Dropbox.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidateNormalizesDedupMode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Canonical", "canonical"},
		{" LEGACY ", "legacy"},
		{"", "legacy"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := Default()
			cfg.DedupMode = tt.input
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.expected, cfg.DedupMode)
		})
	}
}

func TestLoadDedupModeFromEnvIgnoresCase(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEDUP_MODE", "Canonical")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "canonical", cfg.DedupMode)
}
