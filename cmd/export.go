package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/productfinder/internal/export"
	"github.com/lehigh-university-libraries/productfinder/internal/storage"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		out    string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as Parquet or YAML",
		Long: `Writes the catalog to a file for analysis or review.

The parquet format has one row per listing (entries without listings get a
single row with rank 0). The yaml format keeps one document per product with
its listings nested.`,
		Example: `  # One row per listing, for analysis
  productfinder export --format parquet --out data/listings.parquet

  # Review document
  productfinder export --format yaml --out catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			if out == "" {
				out = "data/catalog." + format
			}

			entries, err := storage.New(cfg.CatalogPath, cfg.SnapshotPath).All()
			if err != nil {
				return err
			}

			switch format {
			case "parquet":
				err = export.WriteParquet(out, entries)
				if err == nil && verify {
					err = verifyParquet(out, len(export.Rows(entries)))
				}
			case "yaml":
				err = export.WriteYAML(out, entries, cfg.CatalogPath, time.Now())
			default:
				return fmt.Errorf("unsupported format %q (parquet or yaml)", format)
			}
			if err != nil {
				return err
			}

			slog.Info("Exported catalog", "format", format, "entries", len(entries), "path", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "parquet", "Export format: parquet or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default data/catalog.<format>)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read a parquet export back and check its row count")

	return cmd
}

func verifyParquet(path string, expected int) error {
	rows, err := export.ReadParquet(path)
	if err != nil {
		return err
	}
	if len(rows) != expected {
		return fmt.Errorf("parquet export %s has %d rows, expected %d", path, len(rows), expected)
	}
	slog.Info("Verified parquet export", "path", path, "rows", len(rows))
	return nil
}
