package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists outbox records in the outbox_records table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `id, owner_id, brand_id, type, payload, status, attempts, last_error, scheduled_for, created_at`

func (s *PostgresStore) Enqueue(ctx context.Context, rec *Record) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO outbox_records (id, owner_id, brand_id, type, payload, status, attempts, last_error, scheduled_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.BrandID,
		string(rec.Type),
		payloadJSON,
		string(rec.Status),
		rec.Attempts,
		nullString(rec.LastError),
		rec.ScheduledFor,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM outbox_records
		WHERE status = 'queued' AND (scheduled_for IS NULL OR scheduled_for <= $1)
		ORDER BY scheduled_for ASC NULLS FIRST, created_at ASC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *PostgresStore) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	query := `
		UPDATE outbox_records
		SET status = 'sent', attempts = $2, last_error = NULL, scheduled_for = NULL
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, attempts)
	if err != nil {
		return fmt.Errorf("mark record sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	query := `
		UPDATE outbox_records
		SET status = 'failed', attempts = $2, last_error = $3, scheduled_for = NULL
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("mark record failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) Reschedule(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAt time.Time) error {
	query := `
		UPDATE outbox_records
		SET status = 'queued', attempts = $2, last_error = $3, scheduled_for = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, attempts, lastError, nextAt)
	if err != nil {
		return fmt.Errorf("reschedule record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + recordColumns + `
		FROM outbox_records
		WHERE owner_id = $1 AND brand_id = $2
		  AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`
	rows, err := s.pool.Query(ctx, query, filter.OwnerID, filter.BrandID, string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *PostgresStore) CountQueued(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_records WHERE status = 'queued'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queued records: %w", err)
	}
	return n, nil
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec         Record
			typ, status string
			payloadJSON []byte
			lastError   *string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.BrandID,
			&typ,
			&payloadJSON,
			&status,
			&rec.Attempts,
			&lastError,
			&rec.ScheduledFor,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}

		rec.Type = ActionType(typ)
		rec.Status = Status(status)
		if lastError != nil {
			rec.LastError = *lastError
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox records: %w", err)
	}
	return records, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsNotFound reports whether err represents a missing row from either store.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, pgx.ErrNoRows)
}
