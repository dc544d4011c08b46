package outbox

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const maxErrorLen = 1000

// Dispatcher routes one record to its provider call. Retries are not its
// job; a returned error means this attempt failed.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec *Record) error
}

// Processor drains due records in batches. Per-record failures are written
// back individually and never abort the batch; only store failures propagate.
type Processor struct {
	store      Store
	dispatcher Dispatcher
	clock      clockwork.Clock
	metrics    Metrics
	logger     zerolog.Logger
}

func NewProcessor(store Store, dispatcher Dispatcher, clock clockwork.Clock, metrics Metrics, logger zerolog.Logger) *Processor {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Processor{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// ProcessDue fetches up to limit due records and dispatches them strictly
// sequentially, oldest-due first. Each record's attempt count increases by
// exactly one per pass; a record reaching MaxAttempts on a failing pass is
// marked failed and never re-queued automatically.
func (p *Processor) ProcessDue(ctx context.Context, limit int) (Summary, error) {
	start := p.clock.Now()

	records, err := p.store.FetchDue(ctx, start, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch due outbox records: %w", err)
	}

	var summary Summary
	for i := range records {
		rec := &records[i]
		summary.Processed++

		nextAttempts := rec.Attempts + 1

		if dispatchErr := p.dispatcher.Dispatch(ctx, rec); dispatchErr != nil {
			if err := p.writeFailure(ctx, rec, nextAttempts, dispatchErr); err != nil {
				return summary, err
			}
			if nextAttempts >= MaxAttempts {
				summary.Failed++
			}
			continue
		}

		if err := p.store.MarkSent(ctx, rec.ID, nextAttempts); err != nil {
			return summary, fmt.Errorf("mark record sent: %w", err)
		}
		summary.Sent++
		p.metrics.RecordProcessed(string(rec.Type), "sent")

		p.logger.Info().
			Str("record_id", rec.ID.String()).
			Str("type", string(rec.Type)).
			Int("attempts", nextAttempts).
			Msg("outbox record delivered")
	}

	p.metrics.RecordBatch(summary.Processed, p.clock.Since(start))
	if depth, err := p.store.CountQueued(ctx); err == nil {
		p.metrics.SetQueueDepth(depth)
	}

	if summary.Processed > 0 {
		p.logger.Info().
			Int("processed", summary.Processed).
			Int("sent", summary.Sent).
			Int("failed", summary.Failed).
			Msg("outbox batch completed")
	}

	return summary, nil
}

func (p *Processor) writeFailure(ctx context.Context, rec *Record, nextAttempts int, dispatchErr error) error {
	msg := truncateError(dispatchErr.Error())

	if nextAttempts >= MaxAttempts {
		if err := p.store.MarkFailed(ctx, rec.ID, nextAttempts, msg); err != nil {
			return fmt.Errorf("mark record failed: %w", err)
		}
		p.metrics.RecordProcessed(string(rec.Type), "failed")

		p.logger.Warn().
			Str("record_id", rec.ID.String()).
			Str("type", string(rec.Type)).
			Int("attempts", nextAttempts).
			Str("error", msg).
			Msg("outbox record exhausted retry budget")
		return nil
	}

	nextAt := p.clock.Now().Add(Backoff(nextAttempts))
	if err := p.store.Reschedule(ctx, rec.ID, nextAttempts, msg, nextAt); err != nil {
		return fmt.Errorf("reschedule record: %w", err)
	}
	p.metrics.RecordProcessed(string(rec.Type), "retried")

	p.logger.Warn().
		Str("record_id", rec.ID.String()).
		Str("type", string(rec.Type)).
		Int("attempts", nextAttempts).
		Time("next_attempt_at", nextAt).
		Str("error", msg).
		Msg("outbox record rescheduled")
	return nil
}

func truncateError(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
