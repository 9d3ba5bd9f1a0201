package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var stamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleEntries() []models.CatalogEntry {
	return []models.CatalogEntry{
		{
			ImagePath:       "images/cd1/photo.jpg",
			ProductMetadata: models.ProductMetadata{Category: "vinilo", Title: "Clics Modernos", Author: "Charly García"},
			Timestamp:       stamp,
			Listings: []models.ListingResult{
				{ID: "MLA-1", Title: "Clics Modernos LP", Price: 45999, Permalink: "https://example.com/MLA-1", Condition: models.ConditionNew},
				{ID: "MLA-2", Title: "Clics Modernos usado", Price: 20000, Permalink: "https://example.com/MLA-2", Condition: models.ConditionUsed},
			},
		},
		{
			ImagePath:       "dropbox/libro/tapa.png",
			ProductMetadata: models.ProductMetadata{Category: "libro", Title: "Rayuela"},
			Timestamp:       stamp.Add(time.Hour),
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleEntries())
	require.Len(t, rows, 3)

	assert.Equal(t, int32(1), rows[0].Rank)
	assert.Equal(t, int32(2), rows[1].Rank)
	assert.Equal(t, "used", rows[1].Condition)
	assert.Equal(t, int64(20000), rows[1].Price)
	assert.Equal(t, "Charly García", rows[1].Author)

	assert.Equal(t, "dropbox/libro/tapa.png", rows[2].ImagePath)
	assert.Equal(t, int32(0), rows[2].Rank)
	assert.Equal(t, "", rows[2].ListingID)
	assert.Equal(t, stamp.Add(time.Hour).UnixMilli(), rows[2].Timestamp)
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "catalog.parquet")
	require.NoError(t, WriteParquet(path, sampleEntries()))

	rows, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "MLA-1", rows[0].ListingID)
	assert.Equal(t, int64(45999), rows[0].Price)
	assert.Equal(t, "Rayuela", rows[2].Title)
}

func TestBuildYAML(t *testing.T) {
	data, err := BuildYAML(sampleEntries(), "data/products.json", stamp)
	require.NoError(t, err)

	var doc CatalogExport
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.Config.Count)
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.Config.ExportedAt)
	require.Len(t, doc.Products, 2)
	assert.Equal(t, "Clics Modernos", doc.Products[0].Title)
	assert.Len(t, doc.Products[0].Listings, 2)
	assert.Equal(t, models.ConditionUsed, doc.Products[0].Listings[1].Condition)
	assert.Empty(t, doc.Products[1].Listings)

	assert.Contains(t, string(data), "listings: []")
	assert.NotContains(t, string(data), "brand:")
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "catalog.yaml")
	require.NoError(t, WriteYAML(path, sampleEntries(), "data/products.json", stamp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "imagepath: images/cd1/photo.jpg")
}
