package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned when a record ID does not exist.
var ErrRecordNotFound = errors.New("outbox record not found")

// ListFilter narrows tenant-scoped record listings.
type ListFilter struct {
	OwnerID string
	BrandID string
	Status  Status // optional; empty means all
	Limit   int
}

// Store defines what the processor and the producer API need from the
// persistence layer. Every write is per-record, so a processor run that
// dies mid-batch loses no already-written outcomes.
type Store interface {
	// Enqueue inserts a new queued record.
	Enqueue(ctx context.Context, rec *Record) error

	// FetchDue returns up to limit queued records with scheduled_for <= now,
	// oldest-due first.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]Record, error)

	// MarkSent finalizes a record as delivered: status=sent, attempts updated,
	// last_error and scheduled_for cleared.
	MarkSent(ctx context.Context, id uuid.UUID, attempts int) error

	// MarkFailed finalizes a record as terminally failed: status=failed,
	// attempts updated, scheduled_for cleared, last_error recorded.
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error

	// Reschedule keeps a record queued for a later retry.
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAt time.Time) error

	// List returns tenant-scoped records for status queries.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// CountQueued reports the current queue depth.
	CountQueued(ctx context.Context) (int, error)
}
