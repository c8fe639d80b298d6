package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/storage/local"
)

// newEnrichCmd creates the 'enrich' subcommand, which runs one batch end to end.
func newEnrichCmd() *cobra.Command {
	var (
		input       string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enriches a batch of records",
		Long: `Reads records from --input, runs every record through classification,
accessibility checks and candidate discovery with at most --concurrency records
in flight, then writes the results and prints the batch report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrichCommand(cmd, input, concurrency)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file holding an array of records")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "records in flight (overrides batch.max_concurrency)")
	_ = cmd.MarkFlagRequired("input") //nolint:errcheck // flag is defined above
	return cmd
}

func runEnrichCommand(cmd *cobra.Command, input string, concurrency int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if concurrency < 0 {
		return fmt.Errorf("--concurrency must not be negative, got %d", concurrency)
	}

	records, err := local.ReadRecords(input)
	if err != nil {
		return err
	}
	appInstance.Logger().Info("Loaded records", zap.String("input", input), zap.Int("count", len(records)))

	_, report, err := appInstance.Run(cmd.Context(), records, concurrency)
	if err != nil && !errors.Is(err, context.Canceled) {
		appInstance.Logger().Error("Enrichment finished with errors", zap.Error(err))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		return fmt.Errorf("print report: %w", encErr)
	}
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	appInstance.Logger().Info("Enrich command finished.",
		zap.String("run_id", report.RunID),
		zap.Int("replaced", report.ReplacedCount),
		zap.Int("flagged", report.FlaggedCount),
		zap.Int("errors", len(report.Errors)),
	)
	return nil
}
