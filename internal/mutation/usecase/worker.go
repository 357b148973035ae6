package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	auditDomain "github.com/kiwimedia/agentdesk/internal/audit/domain"
	"github.com/kiwimedia/agentdesk/internal/database"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
	"github.com/kiwimedia/agentdesk/internal/metrics"
	"github.com/kiwimedia/agentdesk/internal/mutation/dispatch"
	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// WorkerConfig holds the background worker tunables.
type WorkerConfig struct {
	Enabled         bool
	WorkerID        string
	BatchSize       int
	Sleep           time.Duration
	Lease           time.Duration
	DispatchTimeout time.Duration
	MaxAge          time.Duration
	SweepInterval   time.Duration
}

// Worker claims due mutation jobs, dispatches them and applies the classified
// outcome. One Worker instance owns one polling loop; multiple instances and
// multiple processes cooperate safely through the claim query's row locks.
type Worker struct {
	txManager database.TxManager
	jobRepo   JobRepository
	dispatch  dispatch.Dispatcher
	retry     dispatch.RetryPolicy
	audit     AuditRecorder
	resolver  RequestResolver
	metrics   metrics.BusinessMetrics
	config    WorkerConfig
	logger    *slog.Logger

	lastSweep time.Time
}

// NewWorker creates a new Worker with the provided dependencies.
func NewWorker(
	txManager database.TxManager,
	jobRepo JobRepository,
	dispatcher dispatch.Dispatcher,
	audit AuditRecorder,
	resolver RequestResolver,
	businessMetrics metrics.BusinessMetrics,
	config WorkerConfig,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		txManager: txManager,
		jobRepo:   jobRepo,
		dispatch:  dispatcher,
		retry:     dispatch.RetryPolicy{MaxAge: config.MaxAge},
		audit:     audit,
		resolver:  resolver,
		metrics:   businessMetrics,
		config:    config,
		logger:    logger,
	}
}

// Run polls for due jobs until the context is cancelled. An empty batch
// pauses for the configured sleep; a non-empty one polls again immediately so
// a backlog drains at full speed.
func (w *Worker) Run(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.Warn("mutation worker started while the store is disabled")
		return nil
	}

	w.logger.Info("mutation worker started",
		slog.String("worker_id", w.config.WorkerID),
		slog.Int("batch_size", w.config.BatchSize),
		slog.Duration("sleep", w.config.Sleep),
	)

	for {
		processed, err := w.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("failed to process mutation batch", slog.String("error", err.Error()))
		}

		w.maybeSweep(ctx)

		if processed > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info("mutation worker shutting down")
			return nil
		case <-time.After(w.config.Sleep):
		}
	}
}

// RunOnce processes a single batch and runs the retention sweep, for the
// worker command's --once flag.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if !w.config.Enabled {
		w.logger.Warn("mutation worker started while the store is disabled")
		return 0, nil
	}

	processed, err := w.ProcessBatch(ctx)
	if err != nil {
		return processed, err
	}

	w.maybeSweep(ctx)
	return processed, nil
}

// ProcessBatch claims one batch of due jobs and dispatches them concurrently.
// The claim transaction commits before any dispatch starts: the lease, not
// the row lock, protects a job while its HTTP call is in flight.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	var claimed []*domain.Job
	err := w.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		claimed, err = w.jobRepo.ClaimDue(txCtx, w.config.WorkerID, w.config.BatchSize, w.config.Lease)
		return err
	})
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to claim due mutation jobs")
	}

	if len(claimed) == 0 {
		return 0, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, job := range claimed {
		group.Go(func() error {
			w.processJob(groupCtx, job)
			return nil
		})
	}
	_ = group.Wait()

	return len(claimed), nil
}

// processJob runs one dispatch attempt and applies the outcome. Errors are
// logged, not returned: one failing job must not sink its batch siblings.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) {
	started := time.Now()

	dispatchCtx, cancel := context.WithTimeout(ctx, w.config.DispatchTimeout)
	outcome := w.dispatch.Dispatch(dispatchCtx, job)
	cancel()

	status := w.applyOutcome(ctx, job, outcome)

	w.metrics.RecordOperation(ctx, "mutation", string(job.CommandType), status)
	w.metrics.RecordDuration(ctx, "mutation", string(job.CommandType), time.Since(started), status)
}

// applyOutcome maps the classified outcome to a job transition and returns
// the metric status label.
func (w *Worker) applyOutcome(ctx context.Context, job *domain.Job, outcome dispatch.Outcome) string {
	if outcome.Success {
		if err := w.jobRepo.MarkDelivered(ctx, job.ID, job.AttemptCount, outcome.HTTPStatus); err != nil {
			if apperrors.Is(err, domain.ErrJobStateChanged) {
				return w.discardOutcome(job)
			}
			w.logger.Error("failed to mark job delivered",
				slog.String("job_id", job.ID.String()), slog.String("error", err.Error()))
			return "error"
		}
		w.recordTerminal(ctx, job, auditDomain.EventMutationDelivered,
			describeJob(job, string(domain.StatusDelivered), map[string]any{"httpStatus": outcome.HTTPStatus}))
		w.resolveRequest(ctx, job, true)
		return "delivered"
	}

	escalate := w.retry.ShouldEscalate(job, time.Now().UTC())
	if outcome.Retryable && !escalate {
		delay, ok := w.retry.NextDelay(job.AttemptCount, job.MaxAttempts)
		if ok {
			nextAttemptAt := time.Now().UTC().Add(delay)
			err := w.jobRepo.MarkRetryScheduled(ctx, job.ID, job.AttemptCount, nextAttemptAt, outcome)
			if err != nil {
				if apperrors.Is(err, domain.ErrJobStateChanged) {
					return w.discardOutcome(job)
				}
				w.logger.Error("failed to schedule job retry",
					slog.String("job_id", job.ID.String()), slog.String("error", err.Error()))
				return "error"
			}
			w.logger.Info("mutation retry scheduled",
				slog.String("job_id", job.ID.String()),
				slog.Int("attempt", job.AttemptCount),
				slog.Time("next_attempt_at", nextAttemptAt),
			)
			return "retry_scheduled"
		}
	}

	if err := w.jobRepo.MarkFailed(ctx, job.ID, job.AttemptCount, outcome); err != nil {
		if apperrors.Is(err, domain.ErrJobStateChanged) {
			return w.discardOutcome(job)
		}
		w.logger.Error("failed to mark job failed",
			slog.String("job_id", job.ID.String()), slog.String("error", err.Error()))
		return "error"
	}
	w.logger.Warn("mutation failed",
		slog.String("job_id", job.ID.String()),
		slog.String("failure_class", string(outcome.FailureClass)),
		slog.String("error_code", outcome.ErrorCode),
	)
	w.recordTerminal(ctx, job, auditDomain.EventMutationFailed,
		describeJob(job, string(domain.StatusFailed), map[string]any{
			"failureClass": string(outcome.FailureClass),
			"errorCode":    outcome.ErrorCode,
		}))
	w.resolveRequest(ctx, job, false)
	return "failed"
}

// discardOutcome handles an attempt whose job left dispatching while the
// call was in flight. The winning transition (an operator cancel) stands;
// the attempt result is dropped without events or request resolution.
func (w *Worker) discardOutcome(job *domain.Job) string {
	w.logger.Info("mutation outcome discarded, job state changed during dispatch",
		slog.String("job_id", job.ID.String()))
	return "superseded"
}

func (w *Worker) recordTerminal(ctx context.Context, job *domain.Job, eventType string, snapshot map[string]any) {
	w.audit.RecordBestEffort(ctx, &auditDomain.Event{
		EventType:     eventType,
		ActorID:       job.CreatedByUser,
		EntityType:    auditDomain.EntityMutationJob,
		EntityID:      job.ID.String(),
		RequestID:     requestIDOf(job),
		CorrelationID: correlationIDOf(job),
		AfterRedacted: snapshot,
	})
}

// resolveRequest closes the orchestrator's operation request, if this job was
// enqueued as a fallback for one.
func (w *Worker) resolveRequest(ctx context.Context, job *domain.Job, delivered bool) {
	if w.resolver == nil || job.Payload.RequestID == "" {
		return
	}

	var err error
	if delivered {
		err = w.resolver.ResolveDelivered(ctx, job.Payload.RequestID, job)
	} else {
		err = w.resolver.ResolveFailed(ctx, job.Payload.RequestID, job)
	}
	if err != nil {
		w.logger.Error("failed to resolve operation request",
			slog.String("request_id", job.Payload.RequestID),
			slog.String("error", err.Error()),
		)
	}
}

// maybeSweep runs the retention sweep when the configured interval elapsed,
// deleting terminal jobs past their horizon and expired audit events.
func (w *Worker) maybeSweep(ctx context.Context) {
	now := time.Now().UTC()
	if now.Sub(w.lastSweep) < w.config.SweepInterval {
		return
	}
	w.lastSweep = now

	deleted, err := w.jobRepo.DeleteExpired(ctx, now)
	if err != nil {
		w.logger.Error("failed to sweep expired mutation jobs", slog.String("error", err.Error()))
	} else if deleted > 0 {
		w.logger.Info("deleted expired mutation jobs", slog.Int64("count", deleted))
	}

	if _, err := w.audit.Cleanup(ctx, false); err != nil {
		w.logger.Error("failed to sweep expired audit events", slog.String("error", err.Error()))
	}
}
