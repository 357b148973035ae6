// Package usecase implements the audit timeline business logic.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiwimedia/agentdesk/internal/audit/domain"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
)

// AuditRepository defines audit event persistence operations.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.Event) error
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditUseCase records and queries the audit timeline.
type AuditUseCase struct {
	auditRepo AuditRepository
	retention time.Duration
	logger    *slog.Logger
}

// NewAuditUseCase creates a new AuditUseCase with the provided dependencies.
func NewAuditUseCase(auditRepo AuditRepository, retention time.Duration, logger *slog.Logger) *AuditUseCase {
	return &AuditUseCase{
		auditRepo: auditRepo,
		retention: retention,
		logger:    logger,
	}
}

// Record appends one audit event, redacting the snapshots first. The caller
// passes raw snapshots; nothing sensitive reaches the repository.
func (a *AuditUseCase) Record(ctx context.Context, event *domain.Event) error {
	event.BeforeRedacted = domain.Redact(event.BeforeRedacted)
	event.AfterRedacted = domain.Redact(event.AfterRedacted)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := a.auditRepo.Append(ctx, event); err != nil {
		return apperrors.Wrap(err, "failed to record audit event")
	}

	return nil
}

// RecordBestEffort appends one audit event and logs instead of failing: the
// primary operation already committed, a lost audit entry must not undo it.
func (a *AuditUseCase) RecordBestEffort(ctx context.Context, event *domain.Event) {
	if err := a.Record(ctx, event); err != nil {
		a.logger.Error("failed to record audit event",
			slog.String("event_type", event.EventType),
			slog.String("entity_id", event.EntityID),
			slog.String("error", err.Error()),
		)
	}
}

// List retrieves audit events matching the filter, newest first.
func (a *AuditUseCase) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	events, err := a.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit events")
	}

	return events, nil
}

// Cleanup deletes audit events past the retention window. With dryRun set it
// only reports how many would be deleted.
func (a *AuditUseCase) Cleanup(ctx context.Context, dryRun bool) (int64, error) {
	cutoff := time.Now().UTC().Add(-a.retention)

	if dryRun {
		return a.auditRepo.CountOlderThan(ctx, cutoff)
	}

	deleted, err := a.auditRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		a.logger.Info("deleted expired audit events", slog.Int64("count", deleted))
	}

	return deleted, nil
}
