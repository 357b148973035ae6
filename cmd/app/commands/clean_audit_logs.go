package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// AuditCleaner is the retention surface of the audit trail used by the
// clean-audit-logs command.
type AuditCleaner interface {
	Cleanup(ctx context.Context, dryRun bool) (int64, error)
}

// RunCleanAuditLogs deletes audit events older than the configured retention.
// Supports dry-run mode to preview the deletion count and both text/JSON
// output formats.
func RunCleanAuditLogs(
	ctx context.Context,
	cleaner AuditCleaner,
	logger *slog.Logger,
	w io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("cleaning audit logs", slog.Bool("dry_run", dryRun))

	count, err := cleaner.Cleanup(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit logs: %w", err)
	}

	if format == "json" {
		outputCleanJSON(w, "audit_logs", count, dryRun)
	} else {
		outputCleanText(w, "audit log(s)", count, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}
