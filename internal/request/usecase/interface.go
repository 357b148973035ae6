package usecase

import (
	"context"

	auditDomain "github.com/kiwimedia/agentdesk/internal/audit/domain"
	mutationDomain "github.com/kiwimedia/agentdesk/internal/mutation/domain"
	mutationUsecase "github.com/kiwimedia/agentdesk/internal/mutation/usecase"
	"github.com/kiwimedia/agentdesk/internal/request/domain"
)

// RequestRepository defines the persistence contract for operation requests.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.OperationRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.OperationRequest, error)
	UpdateStatus(
		ctx context.Context,
		requestID string,
		status domain.Status,
		result map[string]any,
		errorDetail map[string]any,
		completed bool,
	) error
}

// JobEnqueuer stores a durable fallback job when the synchronous attempt
// cannot complete.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, input mutationUsecase.EnqueueInput) (*mutationDomain.Job, error)
}

// AuditRecorder writes audit events for request transitions.
type AuditRecorder interface {
	RecordBestEffort(ctx context.Context, event *auditDomain.Event)
}
