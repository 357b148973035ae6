// Package repository implements PostgreSQL persistence for operation requests.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/kiwimedia/agentdesk/internal/database"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
	"github.com/kiwimedia/agentdesk/internal/request/domain"
)

// PostgreSQLRequestRepository implements operation request persistence for
// PostgreSQL.
type PostgreSQLRequestRepository struct {
	db *sql.DB
}

// NewPostgreSQLRequestRepository creates a new PostgreSQL request repository instance.
func NewPostgreSQLRequestRepository(db *sql.DB) *PostgreSQLRequestRepository {
	return &PostgreSQLRequestRepository{db: db}
}

// Create inserts a fresh operation request record.
func (p *PostgreSQLRequestRepository) Create(ctx context.Context, request *domain.OperationRequest) error {
	querier := database.GetTx(ctx, p.db)

	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	query := `INSERT INTO operation_requests (request_id, operation_type, payload_hash,
				  status, correlation_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		request.RequestID,
		request.OperationType,
		request.PayloadHash,
		string(request.Status),
		request.CorrelationID,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "request id already recorded")
		}
		return apperrors.Wrap(err, "failed to create operation request")
	}

	return nil
}

// GetByRequestID retrieves one operation request by its idempotency key.
func (p *PostgreSQLRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.OperationRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT request_id, operation_type, payload_hash, status, correlation_id,
				  result, error, created_at, updated_at, completed_at
			  FROM operation_requests
			  WHERE request_id = $1`

	var (
		request   domain.OperationRequest
		status    string
		resultRaw []byte
		errorRaw  []byte
	)
	err := querier.QueryRowContext(ctx, query, requestID).Scan(
		&request.RequestID,
		&request.OperationType,
		&request.PayloadHash,
		&status,
		&request.CorrelationID,
		&resultRaw,
		&errorRaw,
		&request.CreatedAt,
		&request.UpdatedAt,
		&request.CompletedAt,
	)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "operation request not found")
		}
		return nil, apperrors.Wrap(err, "failed to get operation request")
	}

	request.Status = domain.Status(status)
	if request.Result, err = decodeJSON(resultRaw); err != nil {
		return nil, err
	}
	if request.Error, err = decodeJSON(errorRaw); err != nil {
		return nil, err
	}

	return &request, nil
}

// UpdateStatus moves a request to a new status, replacing its result and
// error documents. Completed requests get a completion timestamp.
func (p *PostgreSQLRequestRepository) UpdateStatus(
	ctx context.Context,
	requestID string,
	status domain.Status,
	result map[string]any,
	errorDetail map[string]any,
	completed bool,
) error {
	querier := database.GetTx(ctx, p.db)

	encodedResult, err := encodeJSON(result)
	if err != nil {
		return err
	}
	encodedError, err := encodeJSON(errorDetail)
	if err != nil {
		return err
	}

	var completedAt *time.Time
	if completed {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `UPDATE operation_requests
			  SET status = $1, result = $2, error = $3, completed_at = $4, updated_at = $5
			  WHERE request_id = $6`

	res, err := querier.ExecContext(
		ctx,
		query,
		string(status),
		encodedResult,
		encodedError,
		completedAt,
		time.Now().UTC(),
		requestID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update operation request")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to update operation request")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "operation request not found")
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

func encodeJSON(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode request document")
	}
	// lib/pq sends []byte as bytea; jsonb columns need a text parameter.
	return string(encoded), nil
}

func decodeJSON(data []byte) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode request document")
	}
	return out, nil
}
