package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/productfinder/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "productfinder",
		Short: "Catalog product photos and match them to marketplace listings",
		Long: `Productfinder turns folders of product photos into a searchable catalog.

Each product folder's representative image is classified by a vision-capable LLM
(Ollama, OpenAI, Gemini or Anthropic), searched on the marketplace, and saved to a
JSON catalog together with a public snapshot the frontend reads. Images can come
from a local directory or a Dropbox folder kept in sync through webhooks.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (default productfinder.yaml if present)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}
