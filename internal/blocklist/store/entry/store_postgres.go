package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"senderguard/internal/blocklist/models"
	id "senderguard/pkg/domain"
	"senderguard/pkg/platform/pgerr"
	"senderguard/pkg/platform/sentinel"
	txcontext "senderguard/pkg/platform/tx"
)

// PostgresStore persists entries in blacklist_entries. Every statement joins
// the transaction carried by ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entryColumns = `id, sender_name, effective_date, description, is_active,
	match_count, last_match_date, created_by, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, entryID id.EntryID) (*models.Entry, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM blacklist_entries WHERE id = $1`, uuid.UUID(entryID))
	return scanEntry(row)
}

func (s *PostgresStore) FindBySenderName(ctx context.Context, senderName string) (*models.Entry, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM blacklist_entries WHERE sender_name = $1`, senderName)
	return scanEntry(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Entry, int, error) {
	filter = filter.Normalize()
	where, args := listWhere(filter)

	var total int
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blacklist_entries`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count blacklist entries: %w", pgerr.Classify(err))
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM blacklist_entries%s
		ORDER BY last_match_date DESC NULLS LAST, created_at DESC, id
		LIMIT $%d OFFSET $%d`, entryColumns, where, len(args)-1, len(args))

	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list blacklist entries: %w", pgerr.Classify(err))
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func listWhere(f models.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.SenderName != "" {
		args = append(args, "%"+escapeLike(f.SenderName)+"%")
		clauses = append(clauses, fmt.Sprintf("sender_name ILIKE $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.EffectiveFrom != nil {
		args = append(args, *f.EffectiveFrom)
		clauses = append(clauses, fmt.Sprintf("effective_date >= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PostgresStore) ListMatchable(ctx context.Context, now time.Time) ([]*models.Entry, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT `+entryColumns+` FROM blacklist_entries
		WHERE is_active AND effective_date <= $1
		ORDER BY sender_name`, now)
	if err != nil {
		return nil, fmt.Errorf("list matchable entries: %w", pgerr.Classify(err))
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) Create(ctx context.Context, e *models.Entry) error {
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO blacklist_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(e.ID), e.SenderName, e.EffectiveDate, nullableString(e.Description), e.IsActive,
		e.MatchCount, e.LastMatchDate, uuid.UUID(e.CreatedBy), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert blacklist entry: %w", pgerr.Classify(err))
	}
	return nil
}

// Update writes the editable fields. match_count and last_match_date belong to
// IncrementMatch and are never overwritten here.
func (s *PostgresStore) Update(ctx context.Context, e *models.Entry) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE blacklist_entries
		SET sender_name = $2, effective_date = $3, description = $4, is_active = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(e.ID), e.SenderName, e.EffectiveDate, nullableString(e.Description), e.IsActive, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update blacklist entry: %w", pgerr.Classify(err))
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, entryID id.EntryID) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx,
		`DELETE FROM blacklist_entries WHERE id = $1`, uuid.UUID(entryID))
	if err != nil {
		return fmt.Errorf("delete blacklist entry: %w", pgerr.Classify(err))
	}
	return requireRow(res)
}

func (s *PostgresStore) IncrementMatch(ctx context.Context, entryID id.EntryID, delta int64, at time.Time) (*models.Entry, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, `
		UPDATE blacklist_entries
		SET match_count = match_count + $2, last_match_date = $3
		WHERE id = $1
		RETURNING `+entryColumns,
		uuid.UUID(entryID), delta, at,
	)
	return scanEntry(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		e           models.Entry
		entryID     uuid.UUID
		createdBy   uuid.UUID
		description sql.NullString
		lastMatch   sql.NullTime
	)
	err := row.Scan(&entryID, &e.SenderName, &e.EffectiveDate, &description, &e.IsActive,
		&e.MatchCount, &lastMatch, &createdBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan blacklist entry: %w", pgerr.Classify(err))
	}
	e.ID = id.EntryID(entryID)
	e.CreatedBy = id.UserID(createdBy)
	e.Description = description.String
	if lastMatch.Valid {
		t := lastMatch.Time
		e.LastMatchDate = &t
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*models.Entry, error) {
	entries := make([]*models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist entries: %w", pgerr.Classify(err))
	}
	return entries, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", pgerr.Classify(err))
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
