// Package audit appends a history entry for every dispatch attempt: the
// action kind, payload, and raw provider result. Recording is best-effort
// diagnostics, never part of the dispatch success contract.
package audit

import (
	"context"

	"github.com/google/uuid"
)

// Entry is one dispatch history line.
type Entry struct {
	ID       uuid.UUID      `json:"id"`
	OwnerID  string         `json:"owner_id"`
	BrandID  string         `json:"brand_id"`
	RecordID uuid.UUID      `json:"record_id"`
	Action   string         `json:"action"`
	Payload  map[string]any `json:"payload,omitempty"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Trail receives dispatch history entries.
type Trail interface {
	Record(ctx context.Context, entry Entry) error
}

// NopTrail drops entries; used where auditing is not wired.
type NopTrail struct{}

func (NopTrail) Record(ctx context.Context, entry Entry) error { return nil }

// MultiTrail fans an entry out to several sinks (e.g. Postgres + NATS).
// The first error is returned after all sinks were attempted.
type MultiTrail []Trail

func (m MultiTrail) Record(ctx context.Context, entry Entry) error {
	var firstErr error
	for _, trail := range m {
		if err := trail.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
