// Package usecase implements the mutation dispatcher business logic: the
// operator-facing job operations and the background worker loop.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/kiwimedia/agentdesk/internal/audit/domain"
	"github.com/kiwimedia/agentdesk/internal/database"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// JobConfig holds the enqueue-side tunables of the mutation store.
type JobConfig struct {
	Enabled     bool
	MaxAttempts int
	Retention   time.Duration
}

// EnqueueInput is one durable mutation command to be stored and dispatched.
// MaxAttempts overrides the configured attempt budget when positive; the
// orchestrator's fallback jobs run on a smaller budget than operator jobs.
type EnqueueInput struct {
	CommandType     domain.CommandType
	Payload         domain.JobPayload
	ClientRequestID *uuid.UUID
	Actor           domain.Actor
	MaxAttempts     int
}

// JobUseCase implements the operator-facing mutation store operations.
type JobUseCase struct {
	txManager database.TxManager
	jobRepo   JobRepository
	audit     AuditRecorder
	config    JobConfig
	logger    *slog.Logger
}

// NewJobUseCase creates a new JobUseCase with the provided dependencies.
func NewJobUseCase(
	txManager database.TxManager,
	jobRepo JobRepository,
	audit AuditRecorder,
	config JobConfig,
	logger *slog.Logger,
) *JobUseCase {
	return &JobUseCase{
		txManager: txManager,
		jobRepo:   jobRepo,
		audit:     audit,
		config:    config,
		logger:    logger,
	}
}

// ensureEnabled gates every operation behind the store feature flag.
func (j *JobUseCase) ensureEnabled() error {
	if !j.config.Enabled {
		return apperrors.ErrStoreDisabled
	}
	return nil
}

// Enqueue validates and stores one mutation command. When a client request id
// is supplied and was seen before, the previously created job is returned
// verbatim instead of enqueueing twice.
func (j *JobUseCase) Enqueue(ctx context.Context, input EnqueueInput) (*domain.Job, error) {
	if err := j.ensureEnabled(); err != nil {
		return nil, err
	}

	if !input.CommandType.IsValid() {
		return nil, domain.ErrUnknownCommandType
	}
	if err := domain.ValidatePayload(input.CommandType, input.Payload); err != nil {
		return nil, err
	}

	orderingKey, err := domain.BuildOrderingKey(input.CommandType, input.Payload)
	if err != nil {
		return nil, err
	}

	var job *domain.Job
	var replayed bool
	err = j.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if input.ClientRequestID != nil {
			existing, err := j.jobRepo.GetByClientRequestID(txCtx, *input.ClientRequestID)
			if err == nil {
				if !payloadMatches(existing, input) {
					return domain.ErrClientRequestConflict
				}
				job = existing
				replayed = true
				return nil
			}
			if !apperrors.Is(err, apperrors.ErrNotFound) {
				return err
			}
		}

		maxAttempts := j.config.MaxAttempts
		if input.MaxAttempts > 0 {
			maxAttempts = input.MaxAttempts
		}

		now := time.Now().UTC()
		job = &domain.Job{
			ID:              uuid.Must(uuid.NewV7()),
			CommandType:     input.CommandType,
			OrderingKey:     orderingKey,
			Payload:         input.Payload,
			Status:          domain.StatusQueued,
			MaxAttempts:     maxAttempts,
			NextAttemptAt:   now,
			CustomerID:      input.Payload.CustomerID,
			SubscriptionID:  input.Payload.SubscriptionID,
			ClientRequestID: input.ClientRequestID,
			CreatedAt:       now,
			UpdatedAt:       now,
			ExpiresAt:       now.Add(j.config.Retention),
		}
		if input.Actor.User != "" {
			user := input.Actor.User
			job.CreatedByUser = &user
			job.CreatedByRoles = input.Actor.Roles
		}

		return j.jobRepo.Create(txCtx, job)
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		j.audit.RecordBestEffort(ctx, &auditDomain.Event{
			EventType:     auditDomain.EventMutationEnqueued,
			ActorID:       job.CreatedByUser,
			EntityType:    auditDomain.EntityMutationJob,
			EntityID:      job.ID.String(),
			RequestID:     requestIDOf(job),
			CorrelationID: correlationIDOf(job),
			AfterRedacted: map[string]any{
				"commandType": string(job.CommandType),
				"orderingKey": job.OrderingKey,
				"status":      string(job.Status),
			},
		})
	}

	return job, nil
}

// Get retrieves one job with its event history, enforcing read access.
func (j *JobUseCase) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error) {
	if err := j.ensureEnabled(); err != nil {
		return nil, err
	}

	job, err := j.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanRead(job) {
		return nil, apperrors.Wrap(apperrors.ErrForbidden, "job belongs to another user")
	}

	return job, nil
}

// List retrieves a filtered page of jobs. Non-supervisors only ever see their
// own jobs regardless of the requested filter.
func (j *JobUseCase) List(
	ctx context.Context,
	filter domain.ListFilter,
	actor domain.Actor,
) (*domain.Page, error) {
	if err := j.ensureEnabled(); err != nil {
		return nil, err
	}

	if !actor.IsSupervisor() {
		user := actor.User
		filter.CreatedByUser = &user
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	return j.jobRepo.List(ctx, filter)
}

// Summarize returns per-status counts, scoped to the actor's own jobs for
// non-supervisors.
func (j *JobUseCase) Summarize(
	ctx context.Context,
	filter domain.SummaryFilter,
	actor domain.Actor,
) (domain.Summary, error) {
	if err := j.ensureEnabled(); err != nil {
		return domain.Summary{}, err
	}

	if !actor.IsSupervisor() {
		user := actor.User
		filter.CreatedByUser = &user
	}

	return j.jobRepo.Summarize(ctx, filter)
}

// RequestRetry re-activates a failed, cancelled or scheduled job. Permitted
// for supervisors and for the job's creator.
func (j *JobUseCase) RequestRetry(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error) {
	if err := j.ensureEnabled(); err != nil {
		return nil, err
	}

	if err := j.authorizeManage(ctx, id, actor); err != nil {
		return nil, err
	}

	var job *domain.Job
	err := j.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = j.jobRepo.RequestRetry(txCtx, id, actor.User)
		return err
	})
	if err != nil {
		return nil, err
	}

	j.audit.RecordBestEffort(ctx, &auditDomain.Event{
		EventType:     auditDomain.EventMutationRetried,
		ActorID:       actorID(actor),
		EntityType:    auditDomain.EntityMutationJob,
		EntityID:      job.ID.String(),
		RequestID:     requestIDOf(job),
		CorrelationID: correlationIDOf(job),
		AfterRedacted: map[string]any{"status": string(job.Status)},
	})

	return job, nil
}

// RequestCancel cancels a non-terminal job. Permitted for supervisors and for
// the job's creator.
func (j *JobUseCase) RequestCancel(
	ctx context.Context,
	id uuid.UUID,
	actor domain.Actor,
	reason string,
) (*domain.Job, error) {
	if err := j.ensureEnabled(); err != nil {
		return nil, err
	}

	if err := j.authorizeManage(ctx, id, actor); err != nil {
		return nil, err
	}

	var job *domain.Job
	err := j.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		job, err = j.jobRepo.RequestCancel(txCtx, id, actor.User, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	j.audit.RecordBestEffort(ctx, &auditDomain.Event{
		EventType:     auditDomain.EventMutationCancelled,
		ActorID:       actorID(actor),
		EntityType:    auditDomain.EntityMutationJob,
		EntityID:      job.ID.String(),
		RequestID:     requestIDOf(job),
		CorrelationID: correlationIDOf(job),
		AfterRedacted: map[string]any{"status": string(job.Status), "reason": reason},
	})

	return job, nil
}

// authorizeManage checks whether the actor may retry or cancel the job.
func (j *JobUseCase) authorizeManage(ctx context.Context, id uuid.UUID, actor domain.Actor) error {
	job, err := j.jobRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(job) {
		return apperrors.Wrap(apperrors.ErrForbidden, "retry and cancel require an elevated role or job ownership")
	}
	return nil
}

// payloadMatches reports whether a replayed enqueue carries the same command
// as the stored job. The request body is compared in canonical form, so
// formatting differences do not count as a conflict.
func payloadMatches(existing *domain.Job, input EnqueueInput) bool {
	if existing.CommandType != input.CommandType {
		return false
	}
	if !equalInt64Ptr(existing.Payload.CustomerID, input.Payload.CustomerID) ||
		!equalInt64Ptr(existing.Payload.SubscriptionID, input.Payload.SubscriptionID) {
		return false
	}

	existingHash, err := domain.CanonicalRequestHash(existing.Payload.Request)
	if err != nil {
		return false
	}
	inputHash, err := domain.CanonicalRequestHash(input.Payload.Request)
	if err != nil {
		return false
	}
	return existingHash == inputHash
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func actorID(actor domain.Actor) *string {
	if actor.User == "" {
		return nil
	}
	user := actor.User
	return &user
}

func requestIDOf(job *domain.Job) *string {
	if job.Payload.RequestID == "" {
		return nil
	}
	id := job.Payload.RequestID
	return &id
}

func correlationIDOf(job *domain.Job) *string {
	if job.Payload.CorrelationID == "" {
		return nil
	}
	id := job.Payload.CorrelationID
	return &id
}

// describeJob is the audit snapshot of a terminal transition.
func describeJob(job *domain.Job, outcomeStatus string, extra map[string]any) map[string]any {
	snapshot := map[string]any{
		"status":       outcomeStatus,
		"commandType":  string(job.CommandType),
		"attemptCount": job.AttemptCount,
	}
	for k, v := range extra {
		snapshot[k] = v
	}
	return snapshot
}
