package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// MutationCleaner is the retention surface of the job repository used by the
// clean-mutations command.
type MutationCleaner interface {
	CountExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunCleanMutations deletes mutation jobs whose retention window has passed,
// together with their event history. Supports dry-run mode to preview the
// deletion count and both text/JSON output formats.
func RunCleanMutations(
	ctx context.Context,
	cleaner MutationCleaner,
	logger *slog.Logger,
	w io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("cleaning expired mutation jobs", slog.Bool("dry_run", dryRun))

	now := time.Now().UTC()

	var count int64
	var err error
	if dryRun {
		count, err = cleaner.CountExpired(ctx, now)
	} else {
		count, err = cleaner.DeleteExpired(ctx, now)
	}
	if err != nil {
		return fmt.Errorf("failed to clean mutation jobs: %w", err)
	}

	if format == "json" {
		outputCleanJSON(w, "mutation_jobs", count, dryRun)
	} else {
		outputCleanText(w, "mutation job(s)", count, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

// outputCleanText writes the result in human-readable text format.
func outputCleanText(w io.Writer, noun string, count int64, dryRun bool) {
	if dryRun {
		fmt.Fprintf(w, "Dry-run mode: Would delete %d expired %s\n", count, noun)
	} else {
		fmt.Fprintf(w, "Successfully deleted %d expired %s\n", count, noun)
	}
}

// outputCleanJSON writes the result in JSON format for machine consumption.
func outputCleanJSON(w io.Writer, entity string, count int64, dryRun bool) {
	result := map[string]interface{}{
		"entity":  entity,
		"count":   count,
		"dry_run": dryRun,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(w, string(jsonBytes))
}
