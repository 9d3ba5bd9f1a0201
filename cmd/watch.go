package cmd

import (
	"context"
	"log/slog"

	"github.com/lehigh-university-libraries/productfinder/internal/source"
	"github.com/lehigh-university-libraries/productfinder/internal/trigger"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process the local images directory whenever it changes",
		Long: `Watches the local images directory and its product folders.

New or modified images schedule a pipeline run over the whole directory;
changes arriving together are debounced into one run and at most one run is
active at a time. An initial run is made at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Republish(); err != nil {
				return err
			}

			watcher, err := source.NewWatcher(a.root)
			if err != nil {
				return err
			}

			runs := trigger.New(func(ctx context.Context) error {
				report, err := a.run(ctx, "watch")
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			}, cfg.Webhook.Debounce)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			triggerDone := make(chan struct{})
			go func() {
				defer close(triggerDone)
				runs.Start(ctx)
			}()
			runs.Schedule()

			slog.Info("Watching for new images", "dir", a.root)
			err = watcher.Run(ctx, func(path string) {
				queued := runs.Schedule()
				slog.Debug("Image changed", "path", path, "queued", queued)
			})

			cancel()
			<-triggerDone
			return err
		},
	}

	return cmd
}
