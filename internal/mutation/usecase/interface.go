package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/kiwimedia/agentdesk/internal/audit/domain"
	"github.com/kiwimedia/agentdesk/internal/mutation/dispatch"
	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// JobRepository defines mutation job persistence operations.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	GetByClientRequestID(ctx context.Context, clientRequestID uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter domain.ListFilter) (*domain.Page, error)
	Summarize(ctx context.Context, filter domain.SummaryFilter) (domain.Summary, error)
	ClaimDue(ctx context.Context, workerID string, limit int, lease time.Duration) ([]*domain.Job, error)
	MarkDelivered(ctx context.Context, jobID uuid.UUID, attemptCount int, httpStatus *int) error
	MarkRetryScheduled(
		ctx context.Context,
		jobID uuid.UUID,
		attemptCount int,
		nextAttemptAt time.Time,
		outcome dispatch.Outcome,
	) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, attemptCount int, outcome dispatch.Outcome) error
	RequestRetry(ctx context.Context, jobID uuid.UUID, requestedBy string) (*domain.Job, error)
	RequestCancel(ctx context.Context, jobID uuid.UUID, requestedBy, reason string) (*domain.Job, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditRecorder defines the audit sink used by the dispatcher.
type AuditRecorder interface {
	RecordBestEffort(ctx context.Context, event *auditDomain.Event)
	Cleanup(ctx context.Context, dryRun bool) (int64, error)
}

// RequestResolver closes the originating operation request when a job spawned
// by the orchestrator fallback path reaches a terminal status.
type RequestResolver interface {
	ResolveDelivered(ctx context.Context, requestID string, job *domain.Job) error
	ResolveFailed(ctx context.Context, requestID string, job *domain.Job) error
}
