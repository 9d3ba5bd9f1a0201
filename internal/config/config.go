// Package config loads productfinder settings from an optional YAML file,
// overridden by environment variables (a .env file is loaded by the root command).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config flag is given and the file exists
const DefaultFile = "productfinder.yaml"

// Config holds every setting the pipeline, listener and providers need
type Config struct {
	ImagesDir    string `yaml:"images_dir"`
	CatalogPath  string `yaml:"catalog_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	PublicDir    string `yaml:"public_dir"`
	StateDB      string `yaml:"state_db"`
	StagingDir   string `yaml:"staging_dir"`
	DedupMode    string `yaml:"dedup_mode"`

	Dropbox     DropboxConfig     `yaml:"dropbox"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Vision      VisionConfig      `yaml:"vision"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
}

type DropboxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AccessToken   string `yaml:"access_token"`
	Folder        string `yaml:"folder"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type WebhookConfig struct {
	Port     string        `yaml:"port"`
	Debounce time.Duration `yaml:"debounce"`
}

type VisionConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type MarketplaceConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ImagesDir:    "images",
		CatalogPath:  "data/products.json",
		SnapshotPath: "public/data/products.json",
		PublicDir:    "public",
		StateDB:      "data/state.db",
		StagingDir:   "temp-images",
		DedupMode:    "legacy",
		Webhook: WebhookConfig{
			Port:     "3000",
			Debounce: 2 * time.Second,
		},
		Vision: VisionConfig{
			Provider: "ollama",
		},
		Marketplace: MarketplaceConfig{
			BaseURL:           "https://listado.mercadolibre.com.ar",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 1,
		},
	}
}

// Load reads path (or DefaultFile when path is empty and the file exists),
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config file, env only
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.ImagesDir, "IMAGES_DIR")
	setString(&c.CatalogPath, "CATALOG_PATH")
	setString(&c.SnapshotPath, "SNAPSHOT_PATH")
	setString(&c.PublicDir, "PUBLIC_DIR")
	setString(&c.StateDB, "STATE_DB")
	setString(&c.StagingDir, "STAGING_DIR")
	setString(&c.DedupMode, "DEDUP_MODE")

	if v := os.Getenv("USE_DROPBOX"); v != "" {
		c.Dropbox.Enabled = strings.EqualFold(v, "true")
	}
	setString(&c.Dropbox.AccessToken, "DROPBOX_ACCESS_TOKEN")
	setString(&c.Dropbox.Folder, "DROPBOX_FOLDER")
	setString(&c.Dropbox.WebhookSecret, "DROPBOX_WEBHOOK_SECRET")

	setString(&c.Webhook.Port, "WEBHOOK_PORT")
	if err := setDuration(&c.Webhook.Debounce, "DEBOUNCE"); err != nil {
		return err
	}

	setString(&c.Vision.Provider, "CATALOGING_PROVIDER")
	setString(&c.Vision.Model, "VISION_MODEL")

	setString(&c.Marketplace.BaseURL, "MARKETPLACE_BASE_URL")
	if err := setDuration(&c.Marketplace.Timeout, "MARKETPLACE_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("MARKETPLACE_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MARKETPLACE_RPS %q: %w", v, err)
		}
		c.Marketplace.RequestsPerSecond = rps
	}
	return nil
}

// Validate checks the settings the selected mode depends on
func (c *Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.DedupMode))
	if mode == "" {
		mode = "legacy"
	}
	if mode != "legacy" && mode != "canonical" {
		return fmt.Errorf("invalid dedup_mode %q (legacy or canonical)", c.DedupMode)
	}
	c.DedupMode = mode
	if c.Dropbox.Enabled && c.Dropbox.AccessToken == "" {
		return fmt.Errorf("DROPBOX_ACCESS_TOKEN is required when Dropbox is enabled")
	}
	if c.Marketplace.Timeout <= 0 {
		return fmt.Errorf("marketplace timeout must be positive")
	}
	return nil
}

// MonitoredFolder is the Dropbox folder reported by the health endpoint
func (c *Config) MonitoredFolder() string {
	if c.Dropbox.Folder == "" {
		return "root"
	}
	return c.Dropbox.Folder
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
