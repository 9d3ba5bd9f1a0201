package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/productfinder/internal/config"
	"github.com/lehigh-university-libraries/productfinder/internal/images"
	"github.com/lehigh-university-libraries/productfinder/internal/marketplace"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/lehigh-university-libraries/productfinder/internal/pipeline"
	"github.com/lehigh-university-libraries/productfinder/internal/source"
	"github.com/lehigh-university-libraries/productfinder/internal/state"
	"github.com/lehigh-university-libraries/productfinder/internal/storage"
	"github.com/lehigh-university-libraries/productfinder/internal/vision"
)

// app holds the components shared by the run, serve and watch commands
type app struct {
	cfg    *config.Config
	store  *storage.CatalogStore
	state  *state.Store
	client source.Client // nil for the local source
	orch   *pipeline.Orchestrator
	root   string
}

func newApp(cfg *config.Config, useCloud bool) (*app, error) {
	classifier, err := vision.NewClassifier(cfg.Vision.Provider, cfg.Vision.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	mode, err := pipeline.ParseDedupMode(cfg.DedupMode)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		store: storage.New(cfg.CatalogPath, cfg.SnapshotPath),
	}

	var src source.Source
	if useCloud {
		if cfg.Dropbox.AccessToken == "" {
			return nil, fmt.Errorf("DROPBOX_ACCESS_TOKEN is required for the Dropbox source")
		}
		a.client = source.NewDropbox(cfg.Dropbox.AccessToken)
		a.root = source.NormalizeFolder(cfg.Dropbox.Folder)
		src = source.NewCloud(a.client)
	} else {
		a.root = cfg.ImagesDir
		src = source.NewLocal()
	}

	a.state, err = state.Open(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	a.orch = &pipeline.Orchestrator{
		Source:     src,
		Store:      a.store,
		Normalizer: images.NewNormalizer(),
		Classifier: classifier,
		Resolver:   marketplace.NewResolver(cfg.Marketplace.BaseURL, cfg.Marketplace.Timeout, cfg.Marketplace.RequestsPerSecond),
		Matcher:    pipeline.Matcher{Mode: mode},
		StagingDir: cfg.StagingDir,
	}

	slog.Debug("Pipeline configured",
		"source", src.Kind(),
		"root", a.root,
		"provider", cfg.Vision.Provider,
		"dedup", mode)
	return a, nil
}

func (a *app) Close() error {
	return a.state.Close()
}

// run executes one pipeline run and records it in the state database
func (a *app) run(ctx context.Context, trigger string) (*pipeline.Report, error) {
	report, runErr := a.orch.Run(ctx, a.root)
	if errors.Is(runErr, models.ErrRunInProgress) {
		return report, runErr
	}

	record := state.RunRecord{
		ID:         report.RunID,
		Source:     string(report.Source),
		Trigger:    trigger,
		Started:    report.Started,
		Finished:   report.Finished,
		Candidates: report.Candidates,
		Processed:  report.Processed,
		Cached:     report.Cached,
		Failed:     report.Failed,
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	if err := a.state.RecordRun(record); err != nil {
		slog.Warn("Failed to record run", "run_id", report.RunID, "err", err)
	}

	return report, runErr
}
