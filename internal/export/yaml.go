// Package export writes the catalog out in formats meant for analysis and review.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportConfig describes where an export came from
type ExportConfig struct {
	CatalogPath string `yaml:"catalogpath"`
	ExportedAt  string `yaml:"exportedat"`
	Count       int    `yaml:"count"`
}

// ProductExport is one catalog entry in review form
type ProductExport struct {
	ImagePath   string                 `yaml:"imagepath"`
	Category    string                 `yaml:"category"`
	Title       string                 `yaml:"title"`
	Author      string                 `yaml:"author,omitempty"`
	Brand       string                 `yaml:"brand,omitempty"`
	Description string                 `yaml:"description,omitempty"`
	Timestamp   string                 `yaml:"timestamp"`
	Listings    []models.ListingResult `yaml:"listings"`
}

// CatalogExport is the complete YAML document
type CatalogExport struct {
	Config   ExportConfig    `yaml:"config"`
	Products []ProductExport `yaml:"products"`
}

// BuildYAML renders entries as a YAML review document
func BuildYAML(entries []models.CatalogEntry, catalogPath string, now time.Time) ([]byte, error) {
	doc := CatalogExport{
		Config: ExportConfig{
			CatalogPath: catalogPath,
			ExportedAt:  now.UTC().Format(time.RFC3339),
			Count:       len(entries),
		},
		Products: make([]ProductExport, 0, len(entries)),
	}

	for _, e := range entries {
		listings := e.Listings
		if listings == nil {
			listings = []models.ListingResult{}
		}
		doc.Products = append(doc.Products, ProductExport{
			ImagePath:   e.ImagePath,
			Category:    e.ProductMetadata.Category,
			Title:       e.ProductMetadata.Title,
			Author:      e.ProductMetadata.Author,
			Brand:       e.ProductMetadata.Brand,
			Description: e.ProductMetadata.Description,
			Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
			Listings:    listings,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// WriteYAML writes the YAML export to path
func WriteYAML(path string, entries []models.CatalogEntry, catalogPath string, now time.Time) error {
	data, err := BuildYAML(entries, catalogPath, now)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
