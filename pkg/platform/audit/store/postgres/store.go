package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "senderguard/pkg/domain"
	audit "senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/pgerr"
	txcontext "senderguard/pkg/platform/tx"
)

// Store implements audit.Store over the audit_records table.
// entity_id carries no foreign key, so deleting a blocklist entry leaves its
// audit rows untouched.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
	SELECT id, action, entity_id, entity_type, entity_name, actor_id,
		   old_data, new_data, client_ip, user_agent, device, request_id, created_at
	FROM audit_records
`

// Append inserts one record. Inside a tx-carrying context the insert joins
// that transaction. Connection failures surface as sentinel.ErrUnavailable so
// the mutation service reports a retryable audit-write stage.
func (s *Store) Append(ctx context.Context, record audit.Record) error {
	query := `
		INSERT INTO audit_records (
			id, action, entity_id, entity_type, entity_name, actor_id,
			old_data, new_data, client_ip, user_agent, device, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var entityID *uuid.UUID
	if !record.EntityID.IsNil() {
		eid := uuid.UUID(record.EntityID)
		entityID = &eid
	}

	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		string(record.Action),
		entityID,
		string(record.EntityType),
		record.EntityName,
		uuid.UUID(record.ActorID),
		nullableJSON(record.OldData),
		nullableJSON(record.NewData),
		record.ClientIP,
		record.UserAgent,
		record.Device,
		record.RequestID,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", pgerr.Classify(err))
	}
	return nil
}

// ListByEntity returns the history of one entity, including after its deletion.
func (s *Store) ListByEntity(ctx context.Context, entityID id.EntryID) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE entity_id = $1
		ORDER BY created_at DESC, id DESC
	`, uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("query audit records by entity: %w", pgerr.Classify(err))
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByDateRange returns records with from <= created_at < to. A zero bound is open.
func (s *Store) ListByDateRange(ctx context.Context, from, to time.Time) ([]audit.Record, error) {
	var fromArg, toArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}
	if !to.IsZero() {
		toArg = &to
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
	`, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("query audit records by date range: %w", pgerr.Classify(err))
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) ListByActor(ctx context.Context, actorID id.UserID) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE actor_id = $1
		ORDER BY created_at DESC, id DESC
	`, uuid.UUID(actorID))
	if err != nil {
		return nil, fmt.Errorf("query audit records by actor: %w", pgerr.Classify(err))
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	records := make([]audit.Record, 0)
	for rows.Next() {
		var (
			r          audit.Record
			recID      uuid.UUID
			action     string
			entityID   *uuid.UUID
			entityType string
			actorID    uuid.UUID
			oldData    []byte
			newData    []byte
		)
		err := rows.Scan(
			&recID,
			&action,
			&entityID,
			&entityType,
			&r.EntityName,
			&actorID,
			&oldData,
			&newData,
			&r.ClientIP,
			&r.UserAgent,
			&r.Device,
			&r.RequestID,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.ID = id.AuditRecordID(recID)
		r.Action = audit.Action(action)
		r.EntityType = audit.EntityType(entityType)
		r.ActorID = id.UserID(actorID)
		if entityID != nil {
			r.EntityID = id.EntryID(*entityID)
		}
		if len(oldData) > 0 {
			r.OldData = json.RawMessage(oldData)
		}
		if len(newData) > 0 {
			r.NewData = json.RawMessage(newData)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", pgerr.Classify(err))
	}
	return records, nil
}

// nullableJSON maps an absent snapshot to SQL NULL rather than an empty jsonb value.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
