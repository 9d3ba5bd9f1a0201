package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/lehigh-university-libraries/productfinder/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var useDropbox bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every product folder once",
		Long: `Runs the pipeline once over the configured image source.

For each product folder the first image is classified, searched on the
marketplace, and written to the catalog. Folders already in the catalog
are reported as cached and not sent to the vision provider again.`,
		Example: `  # Process the local images directory
  productfinder run

  # Process the configured Dropbox folder
  productfinder run --dropbox`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dropbox") {
				cfg.Dropbox.Enabled = useDropbox
			}

			a, err := newApp(cfg, cfg.Dropbox.Enabled)
			if err != nil {
				return err
			}
			defer a.Close()

			// the snapshot may lag the catalog after a failed write
			if err := a.store.Republish(); err != nil {
				return err
			}

			report, err := a.run(cmd.Context(), "manual")
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useDropbox, "dropbox", false, "Read images from Dropbox instead of the local directory (default from USE_DROPBOX)")

	return cmd
}

func printReport(w io.Writer, report *pipeline.Report) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	for _, item := range report.Items {
		switch item.Status {
		case pipeline.StatusProcessed:
			green.Fprintf(w, "  processed  ")
		case pipeline.StatusCached:
			yellow.Fprintf(w, "  cached     ")
		case pipeline.StatusFailed:
			red.Fprintf(w, "  failed     ")
		}
		fmt.Fprintf(w, "%s/%s\n", item.Group, item.Image)

		if item.Status == pipeline.StatusFailed {
			red.Fprintf(w, "             %s\n", item.Error)
			continue
		}
		if item.Metadata.Title != "" {
			fmt.Fprintf(w, "             %s (%s)\n", item.Metadata.Title, item.Metadata.Category)
		}
		for _, l := range item.Listings {
			cyan.Fprintf(w, "             $%d", l.Price)
			fmt.Fprintf(w, " %s  %s\n", l.Title, l.Permalink)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d candidates: ", report.Candidates)
	green.Fprintf(w, "%d processed", report.Processed)
	fmt.Fprint(w, ", ")
	yellow.Fprintf(w, "%d cached", report.Cached)
	fmt.Fprint(w, ", ")
	red.Fprintf(w, "%d failed", report.Failed)
	fmt.Fprintf(w, " (%s)\n", report.Finished.Sub(report.Started).Round(time.Millisecond))
}
