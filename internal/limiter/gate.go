package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds how many requests run tracking logic at the same time.
type Gate struct {
	sem      *semaphore.Weighted
	size     int64
	inflight atomic.Int64
}

// NewGate constructs a gate admitting at most n concurrent callers (n < 1 means 1).
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Do acquires a permit, runs fn and releases the permit on every exit path,
// panics included. It returns ctx.Err() without running fn if the context
// ends while waiting.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inflight.Add(1)
	defer func() {
		g.inflight.Add(-1)
		g.sem.Release(1)
	}()
	return fn()
}

// InFlight reports how many callers currently hold a permit.
func (g *Gate) InFlight() int64 { return g.inflight.Load() }

// Size reports the permit count.
func (g *Gate) Size() int64 { return g.size }
