package outbox

import "time"

// MaxAttempts is the retry budget: a record whose dispatch keeps failing is
// marked failed once its attempt count reaches this value.
const MaxAttempts = 5

const (
	backoffCapMinutes = 60
	backoffMaxShift   = 6
)

// Backoff returns the delay before retry number attempt (1-based):
// min(60, 2^min(attempt, 6)) minutes. Attempt 1 -> 2m, 2 -> 4m, 3 -> 8m,
// 4 -> 16m, 5 -> 32m. The 60-minute cap only engages above the current
// MaxAttempts; the formula is kept as-is rather than tightened.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt
	if shift > backoffMaxShift {
		shift = backoffMaxShift
	}

	minutes := 1 << shift
	if minutes > backoffCapMinutes {
		minutes = backoffCapMinutes
	}

	return time.Duration(minutes) * time.Minute
}
