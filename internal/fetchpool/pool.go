// Package fetchpool bounds the number of concurrent outbound network calls
// shared by every check of a lint run.
package fetchpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/storylint/internal/metrics"
)

// DefaultSize is the capacity used when none is configured.
const DefaultSize = 8

// Pool admits at most Capacity concurrent operations. Waiting callers are
// admitted in FIFO order; admitted operations may complete in any order.
type Pool struct {
	size int64
	sem  *semaphore.Weighted

	mu       sync.Mutex
	inFlight int
	peak     int
}

// New builds a Pool with the given capacity. Non-positive sizes fall back
// to DefaultSize.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Do runs op while holding a slot. The slot is released on every exit
// path, including a panic in op, and op's error is returned unchanged.
// Only cancellation of ctx while waiting for a slot produces a pool error.
func (p *Pool) Do(ctx context.Context, op func(context.Context) error) error {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("fetch pool wait canceled: %w", err)
	}
	metrics.ObservePoolWait(time.Since(start))
	p.enter()
	defer p.leave()
	return op(ctx)
}

// Run is the typed form of Pool.Do.
func Run[T any](ctx context.Context, p *Pool, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// Capacity returns the fixed number of slots.
func (p *Pool) Capacity() int {
	return int(p.size)
}

// InFlight returns the number of operations holding a slot.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Peak returns the highest in-flight count observed.
func (p *Pool) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func (p *Pool) enter() {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	p.mu.Unlock()
	metrics.IncPoolInFlight()
}

func (p *Pool) leave() {
	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	metrics.DecPoolInFlight()
	p.sem.Release(1)
}
