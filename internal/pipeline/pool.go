package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Pool is a bounded worker pool draining a bounded FIFO queue (§4.5/§5).
// Producers calling Submit block when the queue is full, which is how
// backpressure propagates from a slow downstream stage to its upstream
// producer. Pool is generic over the item type T so the same
// implementation backs the liveness, classify, and collect stages.
type Pool[T any] struct {
	workers int
	queue   chan T
	handle  func(ctx context.Context, item T)

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewPool creates a Pool with `workers` concurrent goroutines draining a
// queue of capacity queueCap. handle is invoked once per submitted item.
func NewPool[T any](workers, queueCap int, handle func(ctx context.Context, item T)) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if queueCap <= 0 {
		queueCap = workers * 4
	}
	return &Pool[T]{
		workers: workers,
		queue:   make(chan T, queueCap),
		handle:  handle,
	}
}

// Start launches the worker goroutines. Safe to call once.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-p.queue:
					if !ok {
						return
					}
					if err := recoverStage(func() error {
						p.handle(ctx, item)
						return nil
					}); err != nil {
						log.Error().Err(err).Msg("pool worker: recovered from panic")
					}
				}
			}
		}()
	}
}

// Submit pushes an item onto the queue, blocking if it is full. It returns
// ctx.Err() if the context is cancelled before the item can be enqueued.
func (p *Pool[T]) Submit(ctx context.Context, item T) error {
	select {
	case p.queue <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals no more items will be submitted and waits for in-flight
// workers to finish draining the queue.
func (p *Pool[T]) Close() {
	close(p.queue)
	p.wg.Wait()
}
