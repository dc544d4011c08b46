// Package outbox implements the durable at-least-once delivery queue:
// the record model, its stores, and the batch processor that drains due
// records with attempt accounting and exponential backoff.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an outbox record.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// ActionType identifies which provider call a record maps to.
type ActionType string

const (
	ActionPostPublish ActionType = "post_publish"
	ActionSmsSend     ActionType = "sms_send"
	ActionGbpPost     ActionType = "gbp_post"
	ActionEmailSend   ActionType = "email_send"
)

// Record is a durable unit of deferred work scoped to a tenant.
// A record transitions queued -> sent exactly once, or queued -> failed
// exactly once after exhausting the retry budget; in between it stays
// queued with an updated ScheduledFor on every retryable failure.
type Record struct {
	ID           uuid.UUID      `json:"id"`
	OwnerID      string         `json:"owner_id"`
	BrandID      string         `json:"brand_id"`
	Type         ActionType     `json:"type"`
	Payload      map[string]any `json:"payload"`
	Status       Status         `json:"status"`
	Attempts     int            `json:"attempts"`
	LastError    string         `json:"last_error,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Summary aggregates the outcome of one processor run.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}
