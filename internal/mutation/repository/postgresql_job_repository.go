// Package repository implements PostgreSQL persistence for mutation jobs and
// their event log. The claim query is the concurrency-critical piece: it must
// hand each due job to exactly one worker while preserving per-ordering-key
// serialization, which is why the repository is PostgreSQL-only (FOR UPDATE
// SKIP LOCKED plus a CTE UPDATE ... RETURNING).
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kiwimedia/agentdesk/internal/database"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
	"github.com/kiwimedia/agentdesk/internal/mutation/dispatch"
	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// jobColumns is the canonical column list; every scan goes through scanJob so
// the order here is the only place it is encoded.
const jobColumns = `id, command_type, ordering_key, payload, status, attempt_count, max_attempts,
	next_attempt_at, first_attempt_at, last_attempt_at, last_error_code, last_error_message,
	last_http_status, failure_class, created_by_user, created_by_roles, customer_id,
	subscription_id, client_request_id, locked_by, locked_until, created_at, updated_at,
	completed_at, expires_at, cancel_reason`

// PostgreSQLJobRepository implements mutation job persistence for PostgreSQL.
type PostgreSQLJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLJobRepository creates a new PostgreSQL job repository instance.
func NewPostgreSQLJobRepository(db *sql.DB) *PostgreSQLJobRepository {
	return &PostgreSQLJobRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner, extra ...any) (*domain.Job, error) {
	var job domain.Job
	var payload []byte
	var failureClass sql.NullString
	var clientRequestID uuid.NullUUID

	dest := append([]any{
		&job.ID,
		&job.CommandType,
		&job.OrderingKey,
		&payload,
		&job.Status,
		&job.AttemptCount,
		&job.MaxAttempts,
		&job.NextAttemptAt,
		&job.FirstAttemptAt,
		&job.LastAttemptAt,
		&job.LastErrorCode,
		&job.LastErrorMsg,
		&job.LastHTTPStatus,
		&failureClass,
		&job.CreatedByUser,
		pq.Array(&job.CreatedByRoles),
		&job.CustomerID,
		&job.SubscriptionID,
		&clientRequestID,
		&job.LockedBy,
		&job.LockedUntil,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
		&job.ExpiresAt,
		&job.CancelReason,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode job payload")
	}
	if failureClass.Valid {
		fc := domain.FailureClass(failureClass.String)
		job.FailureClass = &fc
	}
	if clientRequestID.Valid {
		job.ClientRequestID = &clientRequestID.UUID
	}

	return &job, nil
}

// Create inserts a new job in queued status and appends the queued event.
// Callers wrap it in a transaction together with the idempotency lookup.
func (p *PostgreSQLJobRepository) Create(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, p.db)

	encoded, err := json.Marshal(job.Payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode job payload")
	}
	// lib/pq sends []byte as bytea; jsonb columns need a text parameter.
	payload := string(encoded)

	query := `INSERT INTO mutation_jobs (id, command_type, ordering_key, payload, status,
				  attempt_count, max_attempts, next_attempt_at, created_by_user, created_by_roles,
				  customer_id, subscription_id, client_request_id, created_at, updated_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = querier.ExecContext(
		ctx,
		query,
		job.ID,
		job.CommandType,
		job.OrderingKey,
		payload,
		job.Status,
		job.AttemptCount,
		job.MaxAttempts,
		job.NextAttemptAt,
		job.CreatedByUser,
		pq.Array(job.CreatedByRoles),
		job.CustomerID,
		job.SubscriptionID,
		job.ClientRequestID,
		job.CreatedAt,
		job.UpdatedAt,
		job.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "client request id already used")
		}
		return apperrors.Wrap(err, "failed to create mutation job")
	}

	queued := domain.StatusQueued
	return p.appendEvent(ctx, &domain.Event{
		JobID:        job.ID,
		EventType:    domain.EventQueued,
		NextStatus:   &queued,
		AttemptCount: &job.AttemptCount,
		Metadata: map[string]any{
			"commandType": string(job.CommandType),
			"orderingKey": job.OrderingKey,
		},
		CreatedAt: job.CreatedAt,
	})
}

// GetByID retrieves a job with its full event history.
func (p *PostgreSQLJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(`SELECT %s FROM mutation_jobs WHERE id = $1`, jobColumns)

	job, err := scanJob(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get mutation job")
	}

	events, err := p.listEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Events = events

	return job, nil
}

// GetByClientRequestID retrieves the job previously enqueued with the given
// client request id, for idempotent replay.
func (p *PostgreSQLJobRepository) GetByClientRequestID(
	ctx context.Context,
	clientRequestID uuid.UUID,
) (*domain.Job, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(
		`SELECT %s FROM mutation_jobs WHERE client_request_id = $1 LIMIT 1`,
		jobColumns,
	)

	job, err := scanJob(querier.QueryRowContext(ctx, query, clientRequestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get mutation job by client request id")
	}

	return job, nil
}

// List retrieves a filtered page of jobs, newest first. The cursor is the id
// of the last job on the previous page.
func (p *PostgreSQLJobRepository) List(
	ctx context.Context,
	filter domain.ListFilter,
) (*domain.Page, error) {
	querier := database.GetTx(ctx, p.db)

	conditions := ""
	args := []any{}
	next := func(condition string, value any) {
		args = append(args, value)
		if conditions == "" {
			conditions = "WHERE "
		} else {
			conditions += " AND "
		}
		conditions += fmt.Sprintf(condition, len(args))
	}

	if filter.Status != nil {
		next("status = $%d", *filter.Status)
	}
	if filter.CustomerID != nil {
		next("customer_id = $%d", *filter.CustomerID)
	}
	if filter.CreatedByUser != nil {
		next("created_by_user = $%d", *filter.CreatedByUser)
	}
	if filter.Cursor != nil {
		next("id < $%d", *filter.Cursor)
	}

	args = append(args, filter.Limit+1)
	query := fmt.Sprintf(
		`SELECT %s FROM mutation_jobs %s ORDER BY id DESC LIMIT $%d`,
		jobColumns, conditions, len(args),
	)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list mutation jobs")
	}
	defer rows.Close() //nolint:errcheck

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan mutation job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list mutation jobs")
	}

	page := &domain.Page{Items: jobs}
	if len(jobs) > filter.Limit {
		page.Items = jobs[:filter.Limit]
		cursor := page.Items[len(page.Items)-1].ID
		page.NextCursor = &cursor
	}

	return page, nil
}

// Summarize returns per-status job counts for the given filter.
func (p *PostgreSQLJobRepository) Summarize(
	ctx context.Context,
	filter domain.SummaryFilter,
) (domain.Summary, error) {
	querier := database.GetTx(ctx, p.db)

	conditions := ""
	args := []any{}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conditions = "WHERE customer_id = $1"
	}
	if filter.CreatedByUser != nil {
		args = append(args, *filter.CreatedByUser)
		if conditions == "" {
			conditions = "WHERE created_by_user = $1"
		} else {
			conditions += " AND created_by_user = $2"
		}
	}

	query := fmt.Sprintf(
		`SELECT status, COUNT(*) FROM mutation_jobs %s GROUP BY status`,
		conditions,
	)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Summary{}, apperrors.Wrap(err, "failed to summarize mutation jobs")
	}
	defer rows.Close() //nolint:errcheck

	var summary domain.Summary
	for rows.Next() {
		var status domain.Status
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return domain.Summary{}, apperrors.Wrap(err, "failed to scan mutation summary")
		}

		switch status {
		case domain.StatusQueued:
			summary.Queued = total
		case domain.StatusDispatching:
			summary.Dispatching = total
		case domain.StatusRetryScheduled:
			summary.RetryScheduled = total
		case domain.StatusDelivered:
			summary.Delivered = total
		case domain.StatusFailed:
			summary.Failed = total
		case domain.StatusCancelled:
			summary.Cancelled = total
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Summary{}, apperrors.Wrap(err, "failed to summarize mutation jobs")
	}

	return summary, nil
}

// claimQuery selects due jobs under row locks and transitions them to
// dispatching in one statement. A job is due when it is queued or
// retry_scheduled with next_attempt_at in the past, or when a previous worker
// crashed mid-dispatch and its lease expired. The NOT EXISTS guard keeps
// strict per-ordering-key order: a job never dispatches while an older
// non-terminal job shares its key.
var claimQuery = `
	WITH due AS (
		SELECT j.id, j.status AS previous_status
		FROM mutation_jobs j
		WHERE (
			(j.status IN ('queued', 'retry_scheduled') AND j.next_attempt_at <= $1)
			OR (j.status = 'dispatching' AND j.locked_until IS NOT NULL AND j.locked_until < $1)
		)
		AND NOT EXISTS (
			SELECT 1
			FROM mutation_jobs prev
			WHERE prev.ordering_key = j.ordering_key
			  AND prev.created_at < j.created_at
			  AND prev.status NOT IN ('delivered', 'failed', 'cancelled')
		)
		ORDER BY j.created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	)
	UPDATE mutation_jobs j
	SET status = 'dispatching',
		attempt_count = j.attempt_count + 1,
		first_attempt_at = COALESCE(j.first_attempt_at, $1),
		last_attempt_at = $1,
		locked_by = $3,
		locked_until = $4,
		updated_at = $1
	FROM due
	WHERE j.id = due.id
	RETURNING ` + prefixColumns("j.", jobColumns) + `, due.previous_status`

// ClaimDue atomically claims up to limit due jobs for the given worker and
// appends a dispatch_started event per claimed job. Safe under concurrent
// workers: SKIP LOCKED guarantees no job is handed out twice while the lease
// holds. Callers must wrap it in a transaction.
func (p *PostgreSQLJobRepository) ClaimDue(
	ctx context.Context,
	workerID string,
	limit int,
	lease time.Duration,
) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, p.db)

	now := time.Now().UTC()
	rows, err := querier.QueryContext(ctx, claimQuery, now, limit, workerID, now.Add(lease))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim due mutation jobs")
	}
	defer rows.Close() //nolint:errcheck

	var jobs []*domain.Job
	var previousStatuses []domain.Status
	for rows.Next() {
		var previous domain.Status
		job, err := scanJob(rows, &previous)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimed mutation job")
		}
		jobs = append(jobs, job)
		previousStatuses = append(previousStatuses, previous)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to claim due mutation jobs")
	}

	dispatching := domain.StatusDispatching
	for i, job := range jobs {
		previous := previousStatuses[i]

		err := p.appendEvent(ctx, &domain.Event{
			JobID:          job.ID,
			EventType:      domain.EventDispatchStarted,
			PreviousStatus: &previous,
			NextStatus:     &dispatching,
			AttemptCount:   &job.AttemptCount,
			CreatedAt:      now,
		})
		if err != nil {
			return nil, err
		}
	}

	return jobs, nil
}

// MarkDelivered transitions a dispatched job to delivered and clears any
// stale failure detail from earlier attempts.
func (p *PostgreSQLJobRepository) MarkDelivered(
	ctx context.Context,
	jobID uuid.UUID,
	attemptCount int,
	httpStatus *int,
) error {
	querier := database.GetTx(ctx, p.db)

	now := time.Now().UTC()
	query := `UPDATE mutation_jobs
			  SET status = 'delivered',
				  failure_class = NULL,
				  last_error_code = NULL,
				  last_error_message = NULL,
				  last_http_status = $1,
				  locked_by = NULL,
				  locked_until = NULL,
				  completed_at = $2,
				  updated_at = $2
			  WHERE id = $3 AND status = 'dispatching'`

	result, err := querier.ExecContext(ctx, query, httpStatus, now, jobID)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark mutation job delivered")
	}
	if err := ensureStillDispatching(result); err != nil {
		return err
	}

	dispatching := domain.StatusDispatching
	delivered := domain.StatusDelivered
	return p.appendEvent(ctx, &domain.Event{
		JobID:          jobID,
		EventType:      domain.EventDelivered,
		PreviousStatus: &dispatching,
		NextStatus:     &delivered,
		AttemptCount:   &attemptCount,
		Metadata:       map[string]any{"httpStatus": httpStatus},
		CreatedAt:      now,
	})
}

// MarkRetryScheduled transitions a dispatched job back to retry_scheduled
// with the failure detail of the attempt and the next due time.
func (p *PostgreSQLJobRepository) MarkRetryScheduled(
	ctx context.Context,
	jobID uuid.UUID,
	attemptCount int,
	nextAttemptAt time.Time,
	outcome dispatch.Outcome,
) error {
	querier := database.GetTx(ctx, p.db)

	now := time.Now().UTC()
	query := `UPDATE mutation_jobs
			  SET status = 'retry_scheduled',
				  failure_class = $1,
				  last_error_code = $2,
				  last_error_message = $3,
				  last_http_status = $4,
				  next_attempt_at = $5,
				  locked_by = NULL,
				  locked_until = NULL,
				  updated_at = $6
			  WHERE id = $7 AND status = 'dispatching'`

	result, err := querier.ExecContext(
		ctx,
		query,
		outcome.FailureClass,
		nullableString(outcome.ErrorCode),
		nullableString(outcome.ErrorMessage),
		outcome.HTTPStatus,
		nextAttemptAt,
		now,
		jobID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark mutation job retry scheduled")
	}
	if err := ensureStillDispatching(result); err != nil {
		return err
	}

	dispatching := domain.StatusDispatching
	retryScheduled := domain.StatusRetryScheduled
	return p.appendEvent(ctx, &domain.Event{
		JobID:          jobID,
		EventType:      domain.EventRetryScheduled,
		PreviousStatus: &dispatching,
		NextStatus:     &retryScheduled,
		AttemptCount:   &attemptCount,
		ErrorCode:      nullableString(outcome.ErrorCode),
		ErrorMessage:   nullableString(outcome.ErrorMessage),
		Metadata: map[string]any{
			"httpStatus":    outcome.HTTPStatus,
			"nextAttemptAt": nextAttemptAt.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	})
}

// MarkFailed transitions a dispatched job to the terminal failed status,
// keeping the full diagnostic detail for operator inspection.
func (p *PostgreSQLJobRepository) MarkFailed(
	ctx context.Context,
	jobID uuid.UUID,
	attemptCount int,
	outcome dispatch.Outcome,
) error {
	querier := database.GetTx(ctx, p.db)

	now := time.Now().UTC()
	query := `UPDATE mutation_jobs
			  SET status = 'failed',
				  failure_class = $1,
				  last_error_code = $2,
				  last_error_message = $3,
				  last_http_status = $4,
				  locked_by = NULL,
				  locked_until = NULL,
				  completed_at = $5,
				  updated_at = $5
			  WHERE id = $6 AND status = 'dispatching'`

	result, err := querier.ExecContext(
		ctx,
		query,
		outcome.FailureClass,
		nullableString(outcome.ErrorCode),
		nullableString(outcome.ErrorMessage),
		outcome.HTTPStatus,
		now,
		jobID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark mutation job failed")
	}
	if err := ensureStillDispatching(result); err != nil {
		return err
	}

	dispatching := domain.StatusDispatching
	failed := domain.StatusFailed
	return p.appendEvent(ctx, &domain.Event{
		JobID:          jobID,
		EventType:      domain.EventFailed,
		PreviousStatus: &dispatching,
		NextStatus:     &failed,
		AttemptCount:   &attemptCount,
		ErrorCode:      nullableString(outcome.ErrorCode),
		ErrorMessage:   nullableString(outcome.ErrorMessage),
		Metadata: map[string]any{
			"httpStatus":   outcome.HTTPStatus,
			"failureClass": string(outcome.FailureClass),
		},
		CreatedAt: now,
	})
}

// RequestRetry re-activates a job on operator request. The row lock keeps the
// status check and the transition atomic against a concurrent worker claim.
// Callers must wrap it in a transaction.
func (p *PostgreSQLJobRepository) RequestRetry(
	ctx context.Context,
	jobID uuid.UUID,
	requestedBy string,
) (*domain.Job, error) {
	querier := database.GetTx(ctx, p.db)

	current, err := p.lockJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case domain.StatusQueued, domain.StatusRetryScheduled, domain.StatusFailed, domain.StatusCancelled:
	default:
		return nil, domain.ErrJobNotRetryable
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE mutation_jobs
			  SET status = 'queued',
				  next_attempt_at = $1,
				  completed_at = NULL,
				  cancel_reason = NULL,
				  locked_by = NULL,
				  locked_until = NULL,
				  updated_at = $1
			  WHERE id = $2
			  RETURNING %s`, jobColumns)

	job, err := scanJob(querier.QueryRowContext(ctx, query, now, jobID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to retry mutation job")
	}

	queued := domain.StatusQueued
	previous := current.Status
	err = p.appendEvent(ctx, &domain.Event{
		JobID:          jobID,
		EventType:      domain.EventRetryRequested,
		PreviousStatus: &previous,
		NextStatus:     &queued,
		AttemptCount:   &job.AttemptCount,
		Metadata:       map[string]any{"requestedBy": requestedBy},
		CreatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

// RequestCancel cancels a non-terminal job on operator request. Callers must
// wrap it in a transaction.
func (p *PostgreSQLJobRepository) RequestCancel(
	ctx context.Context,
	jobID uuid.UUID,
	requestedBy string,
	reason string,
) (*domain.Job, error) {
	querier := database.GetTx(ctx, p.db)

	current, err := p.lockJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if current.Status.IsTerminal() {
		return nil, domain.ErrJobAlreadyTerminal
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE mutation_jobs
			  SET status = 'cancelled',
				  cancel_reason = $1,
				  completed_at = $2,
				  locked_by = NULL,
				  locked_until = NULL,
				  updated_at = $2
			  WHERE id = $3
			  RETURNING %s`, jobColumns)

	job, err := scanJob(querier.QueryRowContext(ctx, query, reason, now, jobID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to cancel mutation job")
	}

	cancelled := domain.StatusCancelled
	previous := current.Status
	err = p.appendEvent(ctx, &domain.Event{
		JobID:          jobID,
		EventType:      domain.EventCancelRequested,
		PreviousStatus: &previous,
		NextStatus:     &cancelled,
		AttemptCount:   &job.AttemptCount,
		Metadata:       map[string]any{"requestedBy": requestedBy, "reason": reason},
		CreatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

// DeleteExpired removes terminal jobs past their retention horizon. Events
// cascade via the foreign key.
func (p *PostgreSQLJobRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM mutation_jobs
			  WHERE status IN ('delivered', 'failed', 'cancelled')
				AND expires_at < $1`

	result, err := querier.ExecContext(ctx, query, now)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired mutation jobs")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted mutation jobs")
	}

	return deleted, nil
}

// CountExpired reports how many jobs a sweep would currently delete, for the
// dry-run mode of the cleanup command.
func (p *PostgreSQLJobRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM mutation_jobs
			  WHERE status IN ('delivered', 'failed', 'cancelled')
				AND expires_at < $1`

	var count int64
	if err := querier.QueryRowContext(ctx, query, now).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired mutation jobs")
	}

	return count, nil
}

// lockJob loads a job under FOR UPDATE.
func (p *PostgreSQLJobRepository) lockJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	querier := database.GetTx(ctx, p.db)

	query := fmt.Sprintf(`SELECT %s FROM mutation_jobs WHERE id = $1 FOR UPDATE`, jobColumns)

	job, err := scanJob(querier.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to lock mutation job")
	}

	return job, nil
}

// appendEvent inserts one entry into the job's append-only event log.
func (p *PostgreSQLJobRepository) appendEvent(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, p.db)

	var metadata any
	if event.Metadata != nil {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to encode event metadata")
		}
		metadata = string(encoded)
	}

	query := `INSERT INTO mutation_events (job_id, event_type, previous_status, next_status,
				  attempt_count, error_code, error_message, metadata, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		event.JobID,
		event.EventType,
		event.PreviousStatus,
		event.NextStatus,
		event.AttemptCount,
		event.ErrorCode,
		event.ErrorMessage,
		metadata,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to append mutation event")
	}

	return nil
}

// listEvents loads a job's event log, newest first.
func (p *PostgreSQLJobRepository) listEvents(ctx context.Context, jobID uuid.UUID) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, job_id, event_type, previous_status, next_status, attempt_count,
				  error_code, error_message, metadata, created_at
			  FROM mutation_events
			  WHERE job_id = $1
			  ORDER BY id DESC`

	rows, err := querier.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list mutation events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.Event
	for rows.Next() {
		var event domain.Event
		var metadata []byte

		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.EventType,
			&event.PreviousStatus,
			&event.NextStatus,
			&event.AttemptCount,
			&event.ErrorCode,
			&event.ErrorMessage,
			&metadata,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan mutation event")
		}

		if metadata != nil {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, apperrors.Wrap(err, "failed to decode event metadata")
			}
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list mutation events")
	}

	return events, nil
}

// ensureStillDispatching guards the attempt-result updates: when the row was
// not updated the job left dispatching while the attempt was in flight (an
// operator cancel won the race) and the result must be discarded.
func ensureStillDispatching(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrJobStateChanged
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// prefixColumns qualifies each column of a comma-separated list, for the
// RETURNING clause of the claim update where "due" is also in scope.
func prefixColumns(prefix, columns string) string {
	out := ""
	for i, column := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += prefix + column
	}
	return out
}

func splitColumns(columns string) []string {
	var out []string
	current := ""
	for _, r := range columns {
		switch r {
		case ',':
			out = append(out, current)
			current = ""
		case ' ', '\t', '\n':
		default:
			current += string(r)
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
