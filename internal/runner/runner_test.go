package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwell/dispatch/internal/outbox"
)

// blockingProcessor parks inside ProcessDue until released.
type blockingProcessor struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (p *blockingProcessor) ProcessDue(ctx context.Context, limit int) (outbox.Summary, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	p.started <- struct{}{}
	<-p.release
	return outbox.Summary{Processed: 1, Sent: 1}, nil
}

func (p *blockingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestTrigger_SingleFlight(t *testing.T) {
	t.Parallel()

	proc := newBlockingProcessor()
	r := New(proc, clockwork.NewFakeClock(), DefaultConfig(), zerolog.Nop())

	done := make(chan outbox.Summary, 1)
	go func() {
		done <- r.Trigger(context.Background())
	}()

	// Wait until the first run is parked inside the processor.
	<-proc.started

	// A second trigger while the first is in flight is a no-op.
	summary := r.Trigger(context.Background())
	assert.Equal(t, outbox.Summary{}, summary)
	assert.Equal(t, 1, proc.callCount())

	close(proc.release)
	first := <-done
	assert.Equal(t, outbox.Summary{Processed: 1, Sent: 1}, first)

	// Once the first run finished, triggers work again.
	proc.release = make(chan struct{})
	close(proc.release)
	go func() { <-proc.started }()
	r.Trigger(context.Background())
	assert.Equal(t, 2, proc.callCount())
}

// countingProcessor records invocations without blocking.
type countingProcessor struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProcessor) ProcessDue(ctx context.Context, limit int) (outbox.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return outbox.Summary{}, nil
}

func (p *countingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRunner_TicksOnInterval(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	proc := &countingProcessor{}
	r := New(proc, clock, Config{PollInterval: time.Minute, BatchSize: 10}, zerolog.Nop())

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	// One immediate run on start.
	require.Eventually(t, func() bool { return proc.callCount() == 1 },
		time.Second, time.Millisecond)

	// Each interval produces one more run.
	clock.BlockUntilContext(context.Background(), 1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return proc.callCount() == 2 },
		time.Second, time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return proc.callCount() == 3 },
		time.Second, time.Millisecond)
}

func TestRunner_StartStopLifecycle(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	r := New(&countingProcessor{}, clock, DefaultConfig(), zerolog.Nop())

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()), "double start must fail")

	require.NoError(t, r.Stop())
	assert.Error(t, r.Stop(), "double stop must fail")
}
