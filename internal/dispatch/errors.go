// Package dispatch routes one queued outbox record to the correct provider
// call and records its domain side effects. It holds no retry logic; the
// outbox processor owns attempts and backoff.
package dispatch

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned for a record whose type is not in the
// closed action set.
var ErrUnsupportedType = errors.New("unsupported outbox record type")

// ValidationError marks a payload missing a required field. Retrying will
// fail identically; it is a bug in the producing feature, surfaced through
// the record's last_error.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}
