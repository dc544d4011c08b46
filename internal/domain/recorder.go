// Package domain records the CRUD-side effects of successful dispatches:
// published post entries, schedule completion, and email-log delivery status.
// The owning features live elsewhere; dispatch only appends to them.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brandwell/dispatch/internal/dispatch"
)

// PostgresRecorder implements dispatch.DomainRecorder over the feature tables.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

func (r *PostgresRecorder) RecordPost(ctx context.Context, entry dispatch.PostEntry) error {
	query := `
		INSERT INTO brand_posts (id, owner_id, brand_id, provider, platform, media_type, status, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		uuid.New(),
		entry.OwnerID,
		entry.BrandID,
		entry.Provider,
		entry.Platform,
		entry.MediaType,
		entry.Status,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert brand post: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) MarkSchedulePosted(ctx context.Context, scheduleID string) error {
	query := `UPDATE post_schedules SET status = 'posted', posted_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, scheduleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark schedule posted: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) MarkEmailLogSent(ctx context.Context, emailLogID, providerMessageID string) error {
	query := `UPDATE email_logs SET status = 'sent', provider_message_id = $2, sent_at = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, emailLogID, providerMessageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark email log sent: %w", err)
	}
	return nil
}
