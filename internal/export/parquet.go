package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/parquet-go/parquet-go"
)

// ListingRow is one flattened (entry, listing) pair. Entries without listings
// produce a single row with Rank 0 and empty listing columns.
type ListingRow struct {
	ImagePath    string `parquet:"image_path"`
	Category     string `parquet:"category"`
	Title        string `parquet:"title"`
	Author       string `parquet:"author,optional"`
	Brand        string `parquet:"brand,optional"`
	Description  string `parquet:"description,optional"`
	Timestamp    int64  `parquet:"timestamp_ms"`
	Rank         int32  `parquet:"rank"`
	ListingID    string `parquet:"listing_id,optional"`
	ListingTitle string `parquet:"listing_title,optional"`
	Price        int64  `parquet:"price"`
	Permalink    string `parquet:"permalink,optional"`
	Thumbnail    string `parquet:"thumbnail,optional"`
	Condition    string `parquet:"condition,optional"`
}

// Rows flattens catalog entries in catalog order
func Rows(entries []models.CatalogEntry) []ListingRow {
	var rows []ListingRow
	for _, e := range entries {
		base := ListingRow{
			ImagePath:   e.ImagePath,
			Category:    e.ProductMetadata.Category,
			Title:       e.ProductMetadata.Title,
			Author:      e.ProductMetadata.Author,
			Brand:       e.ProductMetadata.Brand,
			Description: e.ProductMetadata.Description,
			Timestamp:   e.Timestamp.UnixMilli(),
		}
		if len(e.Listings) == 0 {
			rows = append(rows, base)
			continue
		}
		for i, l := range e.Listings {
			row := base
			row.Rank = int32(i + 1)
			row.ListingID = l.ID
			row.ListingTitle = l.Title
			row.Price = int64(l.Price)
			row.Permalink = l.Permalink
			row.Thumbnail = l.Thumbnail
			row.Condition = string(l.Condition)
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteParquet writes the flattened catalog to path
func WriteParquet(path string, entries []models.CatalogEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	rows := Rows(entries)
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	slog.Debug("Wrote parquet export", "path", path, "rows", len(rows))
	return nil
}

// ReadParquet loads rows written by WriteParquet
func ReadParquet(path string) ([]ListingRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[ListingRow](pf)
	defer reader.Close()

	var rows []ListingRow
	batch := make([]ListingRow, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return rows, nil
}
