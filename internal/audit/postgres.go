package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTrail appends entries to the dispatch_audit table.
type PostgresTrail struct {
	pool *pgxpool.Pool
}

func NewPostgresTrail(pool *pgxpool.Pool) *PostgresTrail {
	return &PostgresTrail{pool: pool}
}

func (t *PostgresTrail) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("marshal audit result: %w", err)
	}

	query := `
		INSERT INTO dispatch_audit (id, owner_id, brand_id, record_id, action, payload, result, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = t.pool.Exec(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.BrandID,
		entry.RecordID,
		entry.Action,
		payloadJSON,
		resultJSON,
		entry.Error,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
