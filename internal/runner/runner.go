// Package runner owns the periodic processing trigger: a ticker that invokes
// the outbox processor, guarded so overlapping runs are skipped rather than
// queued. The same guard covers external cron triggers arriving over HTTP.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/brandwell/dispatch/internal/outbox"
)

// Config tunes the runner.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: time.Minute,
		BatchSize:    50,
	}
}

// OutboxProcessor is the slice of the processor the runner needs.
type OutboxProcessor interface {
	ProcessDue(ctx context.Context, limit int) (outbox.Summary, error)
}

// Runner drives the processor on a fixed interval. At most one run is in
// flight per process: a tick (or external trigger) that arrives while a run
// is active is a no-op.
type Runner struct {
	processor OutboxProcessor
	clock     clockwork.Clock
	config    Config
	logger    zerolog.Logger

	inFlight atomic.Bool

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(processor OutboxProcessor, clock clockwork.Clock, cfg Config, logger zerolog.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Runner{
		processor: processor,
		clock:     clock,
		config:    cfg,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the tick loop. It is an error to start a running runner.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner already running")
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info().
		Dur("poll_interval", r.config.PollInterval).
		Int("batch_size", r.config.BatchSize).
		Msg("outbox runner started")

	return nil
}

// Stop halts the tick loop and waits for an in-flight run to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner not running")
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()

	r.logger.Info().Msg("outbox runner stopped")
	return nil
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start.
	r.Trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.Chan():
			r.Trigger(ctx)
		}
	}
}

// Trigger runs one processing pass unless another is already in flight, in
// which case it returns an empty summary without touching the store. Exposed
// so an external cron caller shares the same single-flight guard.
func (r *Runner) Trigger(ctx context.Context) outbox.Summary {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Debug().Msg("skipping tick: previous run still in flight")
		return outbox.Summary{}
	}
	defer r.inFlight.Store(false)

	summary, err := r.processor.ProcessDue(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("outbox processing run failed")
		return summary
	}
	return summary
}
