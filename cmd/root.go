// Package cmd defines and implements the CLI commands for the linkenricher executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/app"
	"github.com/JakeFAU/profile-link-enricher/internal/config"
	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/logging"
	"github.com/JakeFAU/profile-link-enricher/internal/storage/memory"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the run context, so tests can inject a fake.
type App interface {
	Run(ctx context.Context, records []enrich.Record, maxConcurrency int) ([]enrich.EnrichedRecord, enrich.BatchReport, error)
	Process(ctx context.Context, records []enrich.Record, maxConcurrency int) ([]enrich.EnrichedRecord, enrich.BatchReport, error)
	Classify(raw string) enrich.ClassificationResult
	Logger() *zap.Logger
	Close()
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configFile string
	outputDir  string
	logLevel   string
	dryRun     bool
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, opts rootOptions) (App, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.outputDir != "" {
		cfg.Output.BaseDir = opts.outputDir
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	var appOpts []app.Option
	if opts.dryRun {
		cfg.Report.DSN = ""
		appOpts = append(appOpts, app.WithSink(memory.NewSink()))
	}
	a, err := app.New(ctx, cfg, logger, appOpts...)
	if err != nil {
		_ = logger.Sync() //nolint:errcheck // best-effort flush
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "linkenricher",
		Short: "Classifies, checks and repairs profile links in people records.",
		Long: `linkenricher reads a JSON array of people records, classifies every
profile link, checks that it still resolves and replaces broken or low-quality
links with validated candidates from institution directories and academic
platforms. It writes the enriched records and a batch report.`,
		SilenceUsage: true,

		// Builds the run context after flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.StringVar(&opts.outputDir, "output", "", "directory for enriched.json and report.json (overrides output.dir)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "keep results in memory and skip the report database")

	cmd.AddCommand(newEnrichCmd(), newClassifyCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel in-flight work.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
