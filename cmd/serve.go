package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/productfinder/internal/handlers"
	"github.com/lehigh-university-libraries/productfinder/internal/trigger"
	"github.com/spf13/cobra"
)

// defaultAccount keys the cursor recorded at startup, before any notification names an account
const defaultAccount = "default"

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for Dropbox notifications and serve the catalog",
		Long: `Starts the change listener.

Dropbox webhook notifications that touch images inside the monitored folder
schedule a pipeline run; bursts of notifications are debounced and at most one
run is active at a time. The listener also serves the public snapshot, recent
run history, a health endpoint and the static frontend from the public directory.`,
		Example: `  # Listen on the configured port (3000 by default)
  productfinder serve

  # Listen on a custom port
  productfinder serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Dropbox.Enabled && cfg.Dropbox.WebhookSecret == "" {
				return fmt.Errorf("DROPBOX_WEBHOOK_SECRET is required to verify notifications")
			}

			a, err := newApp(cfg, cfg.Dropbox.Enabled)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Republish(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if a.client != nil {
				recordStartCursor(ctx, a)
			}

			runs := trigger.New(func(ctx context.Context) error {
				_, err := a.run(ctx, "webhook")
				return err
			}, cfg.Webhook.Debounce)

			listener := &handlers.Listener{
				Secret:    cfg.Dropbox.WebhookSecret,
				Folder:    cfg.Dropbox.Folder,
				Client:    a.client,
				Cursors:   a.state,
				Scheduler: runs,
				Snapshots: a.store,
				Entries:   a.store,
				Runs:      a.state,
				PublicDir: cfg.PublicDir,
			}

			if port == "" {
				port = cfg.Webhook.Port
			}
			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           listener.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			triggerDone := make(chan struct{})
			go func() {
				defer close(triggerDone)
				runs.Start(ctx)
			}()

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Listener available", "addr", addr, "folder", cfg.MonitoredFolder(), "dropbox", cfg.Dropbox.Enabled)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				if runs.Running() {
					slog.Info("Waiting for the current item to finish")
				}
				<-triggerDone
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from WEBHOOK_PORT or 3000)")

	return cmd
}

// recordStartCursor stores the folder's latest cursor when none is known yet,
// so the first notification only reports changes made after startup.
func recordStartCursor(ctx context.Context, a *app) {
	cursor, err := a.state.Cursor(defaultAccount)
	if err != nil {
		slog.Warn("Failed to read stored cursor", "err", err)
		return
	}
	if cursor != "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	latest, err := a.client.LatestCursor(ctx, a.root, true)
	if err != nil {
		slog.Warn("Failed to fetch latest cursor", "folder", a.root, "err", err)
		return
	}
	if err := a.state.SetCursor(defaultAccount, latest); err != nil {
		slog.Warn("Failed to store cursor", "err", err)
		return
	}
	slog.Debug("Recorded start cursor", "folder", a.root)
}
