// Package repository implements PostgreSQL persistence for the audit timeline.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiwimedia/agentdesk/internal/audit/domain"
	"github.com/kiwimedia/agentdesk/internal/database"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
)

// PostgreSQLAuditRepository implements audit event persistence for PostgreSQL.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditRepository creates a new PostgreSQL audit repository instance.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}

// Append inserts one audit event and fills in its generated id.
func (p *PostgreSQLAuditRepository) Append(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, p.db)

	before, err := encodeJSON(event.BeforeRedacted)
	if err != nil {
		return err
	}
	after, err := encodeJSON(event.AfterRedacted)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(event.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_events (event_type, actor_id, entity_type, entity_id,
				  request_id, correlation_id, before_redacted, after_redacted, metadata, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id`

	err = querier.QueryRowContext(
		ctx,
		query,
		event.EventType,
		event.ActorID,
		event.EntityType,
		event.EntityID,
		event.RequestID,
		event.CorrelationID,
		before,
		after,
		metadata,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to append audit event")
	}

	return nil
}

// List retrieves audit events matching the filter, newest first.
func (p *PostgreSQLAuditRepository) List(
	ctx context.Context,
	filter domain.ListFilter,
) ([]*domain.Event, error) {
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

	if filter.EntityType != nil {
		next("entity_type = $%d", *filter.EntityType)
	}
	if filter.EntityID != nil {
		next("entity_id = $%d", *filter.EntityID)
	}
	if filter.RequestID != nil {
		next("request_id = $%d", *filter.RequestID)
	}
	if filter.Cursor != nil {
		next("id < $%d", *filter.Cursor)
	}

	args = append(args, filter.Limit)
	query := fmt.Sprintf(`SELECT id, event_type, actor_id, entity_type, entity_id, request_id,
				  correlation_id, before_redacted, after_redacted, metadata, created_at
			  FROM audit_events %s ORDER BY id DESC LIMIT $%d`, conditions, len(args))

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.Event
	for rows.Next() {
		var event domain.Event
		var before, after, metadata []byte

		err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.ActorID,
			&event.EntityType,
			&event.EntityID,
			&event.RequestID,
			&event.CorrelationID,
			&before,
			&after,
			&metadata,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit event")
		}

		if event.BeforeRedacted, err = decodeJSON(before); err != nil {
			return nil, err
		}
		if event.AfterRedacted, err = decodeJSON(after); err != nil {
			return nil, err
		}
		if event.Metadata, err = decodeJSON(metadata); err != nil {
			return nil, err
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit events")
	}

	return events, nil
}

// DeleteOlderThan removes audit events created before the cutoff.
func (p *PostgreSQLAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit events")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted audit events")
	}

	return deleted, nil
}

// CountOlderThan reports how many events a cleanup would delete, for dry runs.
func (p *PostgreSQLAuditRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(
		ctx, `SELECT COUNT(*) FROM audit_events WHERE created_at < $1`, cutoff,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count audit events")
	}

	return count, nil
}

func encodeJSON(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode audit snapshot")
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
		return nil, apperrors.Wrap(err, "failed to decode audit snapshot")
	}
	return out, nil
}
