package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MaxListings caps the marketplace results kept per catalog entry
const MaxListings = 5

// SourceKind identifies where a candidate image came from
type SourceKind string

const (
	SourceLocal SourceKind = "local"
	SourceCloud SourceKind = "cloud"
)

// ImageCandidate represents the representative image of one product group
type ImageCandidate struct {
	SourceKind       SourceKind `json:"source_kind"`
	SourcePath       string     `json:"source_path"`  // path as reported by the source
	DisplayName      string     `json:"display_name"` // file name
	Group            string     `json:"group"`        // product folder name
	LocalStagingPath string     `json:"local_staging_path,omitempty"`
}

// ProductMetadata is the structured result of classifying a product image
type ProductMetadata struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts both the English keys and the Spanish keys the
// classification prompt asks the model for.
func (m *ProductMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	*m = ProductMetadata{
		Category:    pick("category", "categoria"),
		Title:       pick("title", "titulo"),
		Author:      pick("author", "autor"),
		Brand:       pick("brand", "marca"),
		Description: pick("description", "descripcion"),
	}
	return nil
}

// Usable reports whether the metadata carries enough to build a marketplace query
func (m ProductMetadata) Usable() bool {
	return m.Category != "" && m.Title != ""
}

// Condition of a marketplace listing
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// ListingResult is a single marketplace listing matched for a product
type ListingResult struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Price     int       `json:"price" yaml:"price"`
	Permalink string    `json:"permalink" yaml:"permalink"`
	Thumbnail string    `json:"thumbnail" yaml:"thumbnail"`
	Condition Condition `json:"condition" yaml:"condition"`
}

// CatalogEntry is the persisted analysis of one product image.
// ImagePath is the entry's identity within the catalog.
type CatalogEntry struct {
	ImagePath       string          `json:"imagePath"`
	ProductMetadata ProductMetadata `json:"productMetadata"`
	Timestamp       time.Time       `json:"timestamp"`
	Listings        []ListingResult `json:"listings"`
}

// MarshalJSON always encodes listings as an array
func (e CatalogEntry) MarshalJSON() ([]byte, error) {
	type alias CatalogEntry
	a := alias(e)
	if a.Listings == nil {
		a.Listings = []ListingResult{}
	}
	return json.Marshal(a)
}

// Catalog is the ordered, authoritative list of entries
type Catalog struct {
	Entries []CatalogEntry
}

// Find returns the index of the entry with the given image path, or -1
func (c *Catalog) Find(imagePath string) int {
	for i := range c.Entries {
		if c.Entries[i].ImagePath == imagePath {
			return i
		}
	}
	return -1
}

// Upsert replaces the entry with the same image path in place or appends it.
// It reports whether an existing entry was replaced.
func (c *Catalog) Upsert(entry CatalogEntry) bool {
	if i := c.Find(entry.ImagePath); i >= 0 {
		c.Entries[i] = entry
		return true
	}
	c.Entries = append(c.Entries, entry)
	return false
}

// MarshalJSON encodes the catalog as a bare array
func (c Catalog) MarshalJSON() ([]byte, error) {
	if c.Entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Entries)
}

// UnmarshalJSON decodes a bare array and collapses duplicate image paths,
// keeping the first position and the last value.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	c.Entries = make([]CatalogEntry, 0, len(entries))
	for _, e := range entries {
		c.Upsert(e)
	}
	return nil
}

// PublicSnapshot is the read-only projection served to the frontend
type PublicSnapshot struct {
	Entries     []CatalogEntry `json:"entries"`
	LastUpdated string         `json:"lastUpdated"`
	Count       int            `json:"count"`
}

// NewSnapshot projects a catalog into a snapshot stamped with now
func NewSnapshot(c Catalog, now time.Time) PublicSnapshot {
	entries := make([]CatalogEntry, len(c.Entries))
	copy(entries, c.Entries)
	return PublicSnapshot{
		Entries:     entries,
		LastUpdated: now.UTC().Format(time.RFC3339),
		Count:       len(entries),
	}
}
