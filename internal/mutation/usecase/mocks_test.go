package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/kiwimedia/agentdesk/internal/audit/domain"
	"github.com/kiwimedia/agentdesk/internal/mutation/dispatch"
	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// mockJobRepository is a mock implementation of JobRepository for testing.
type mockJobRepository struct {
	mock.Mock
}

func (m *mockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *mockJobRepository) GetByClientRequestID(ctx context.Context, clientRequestID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, clientRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *mockJobRepository) List(ctx context.Context, filter domain.ListFilter) (*domain.Page, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Page), args.Error(1)
}

func (m *mockJobRepository) Summarize(ctx context.Context, filter domain.SummaryFilter) (domain.Summary, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.Summary), args.Error(1)
}

func (m *mockJobRepository) ClaimDue(
	ctx context.Context,
	workerID string,
	limit int,
	lease time.Duration,
) ([]*domain.Job, error) {
	args := m.Called(ctx, workerID, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Job), args.Error(1)
}

func (m *mockJobRepository) MarkDelivered(ctx context.Context, jobID uuid.UUID, attemptCount int, httpStatus *int) error {
	args := m.Called(ctx, jobID, attemptCount, httpStatus)
	return args.Error(0)
}

func (m *mockJobRepository) MarkRetryScheduled(
	ctx context.Context,
	jobID uuid.UUID,
	attemptCount int,
	nextAttemptAt time.Time,
	outcome dispatch.Outcome,
) error {
	args := m.Called(ctx, jobID, attemptCount, nextAttemptAt, outcome)
	return args.Error(0)
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, attemptCount int, outcome dispatch.Outcome) error {
	args := m.Called(ctx, jobID, attemptCount, outcome)
	return args.Error(0)
}

func (m *mockJobRepository) RequestRetry(ctx context.Context, jobID uuid.UUID, requestedBy string) (*domain.Job, error) {
	args := m.Called(ctx, jobID, requestedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *mockJobRepository) RequestCancel(
	ctx context.Context,
	jobID uuid.UUID,
	requestedBy, reason string,
) (*domain.Job, error) {
	args := m.Called(ctx, jobID, requestedBy, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *mockJobRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockJobRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// mockAuditRecorder is a mock implementation of AuditRecorder for testing.
type mockAuditRecorder struct {
	mock.Mock
}

func (m *mockAuditRecorder) RecordBestEffort(ctx context.Context, event *auditDomain.Event) {
	m.Called(ctx, event)
}

func (m *mockAuditRecorder) Cleanup(ctx context.Context, dryRun bool) (int64, error) {
	args := m.Called(ctx, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// mockDispatcher is a mock implementation of dispatch.Dispatcher for testing.
type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, job *domain.Job) dispatch.Outcome {
	args := m.Called(ctx, job)
	return args.Get(0).(dispatch.Outcome)
}

// mockRequestResolver is a mock implementation of RequestResolver for testing.
type mockRequestResolver struct {
	mock.Mock
}

func (m *mockRequestResolver) ResolveDelivered(ctx context.Context, requestID string, job *domain.Job) error {
	args := m.Called(ctx, requestID, job)
	return args.Error(0)
}

func (m *mockRequestResolver) ResolveFailed(ctx context.Context, requestID string, job *domain.Job) error {
	args := m.Called(ctx, requestID, job)
	return args.Error(0)
}

// mockTxManager runs the function without a real transaction.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
