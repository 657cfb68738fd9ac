// Package transferworker runs deferred finalization of async-mode transfers.
package transferworker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Finalizer re-runs the atomic transfer step for a stored transfer id.
//
//go:generate mockgen -source worker.go -destination worker_mock.go -package transferworker
type Finalizer interface {
	Finalize(ctx context.Context, transferID string) error
}

// Pool is a worker pool consuming transfer ids from an in-process queue.
// Each task waits the configured delay before finalizing, modeling
// asynchronous settlement latency. Tasks carry only the transfer id; the
// committed PROCESSING row is the durable handoff point.
type Pool struct {
	finalizer Finalizer
	logger    zerolog.Logger
	delay     time.Duration
	tasks     chan string
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool returns an unstarted Pool. The finalizer is attached with
// SetFinalizer before Start: the pool is handed to the transfer service as
// its queue, and the service is in turn the pool's finalizer.
func NewPool(logger zerolog.Logger, delay time.Duration, buffer int) *Pool {
	if buffer < 1 {
		buffer = 1
	}

	return &Pool{
		logger: logger,
		delay:  delay,
		tasks:  make(chan string, buffer),
	}
}

// SetFinalizer attaches the finalizer. Must be called before Start.
func (p *Pool) SetFinalizer(f Finalizer) {
	p.finalizer = f
}

// Start launches the given number of workers. Workers run until Shutdown
// closes the queue; every accepted task is finalized before they exit.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			for transferID := range p.tasks {
				p.process(transferID)
			}
		}()
	}
}

// Enqueue schedules finalization of the given transfer. It never blocks the
// accepting request handler: when the queue is full the task is handed to a
// dedicated goroutine instead. Enqueue after Shutdown is a no-op; the
// transfer stays PROCESSING and is visible via the status endpoint.
func (p *Pool) Enqueue(transferID string) {
	p.mu.RLock()

	if p.closed {
		p.mu.RUnlock()
		p.logger.Warn().Str("transfer_id", transferID).Msg("queue closed, transfer not scheduled")

		return
	}

	select {
	case p.tasks <- transferID:
		p.mu.RUnlock()
	default:
		go func() {
			p.tasks <- transferID
			p.mu.RUnlock()
		}()
	}
}

// Shutdown stops intake, then waits for the queue to drain and all workers
// to finish. Pending Enqueue senders hold the intake lock, so the queue is
// only closed once every accepted task is on it.
func (p *Pool) Shutdown() {
	p.mu.Lock()

	if !p.closed {
		p.closed = true
		close(p.tasks)
	}

	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) process(transferID string) {
	logger := p.logger.With().Str("transfer_id", transferID).Logger()

	time.Sleep(p.delay)

	if err := p.finalizer.Finalize(logger.WithContext(context.Background()), transferID); err != nil {
		logger.Error().Err(err).Msg("transfer finalization failed")
	}
}
