package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/lehigh-university-libraries/productfinder/internal/state"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			st, err := state.Open(cfg.StateDB)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.RecentRuns(limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded yet")
				return nil
			}

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)
			red := color.New(color.FgRed)
			faint := color.New(color.Faint)

			for _, r := range runs {
				faint.Fprintf(w, "%s  ", r.Started.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(w, "%-7s %-7s %3d candidates  ", r.Source, r.Trigger, r.Candidates)
				green.Fprintf(w, "%3d processed  ", r.Processed)
				yellow.Fprintf(w, "%3d cached  ", r.Cached)
				red.Fprintf(w, "%3d failed", r.Failed)
				fmt.Fprintf(w, "  %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
				if r.Error != "" {
					red.Fprintf(w, "    %s\n", r.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}
