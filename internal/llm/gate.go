package llm

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate serializes access to the model backend. The backend loads one model
// into memory and is not safe for concurrent invocation, so every document
// extraction acquires the gate for its full multi-chunk run and holds it
// until the stream is drained. Waiters are served in arrival order.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the caller owns the model, or ctx is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *Gate) Release() {
	g.sem.Release(1)
}

// TryAcquire reports whether the model was free and is now held.
func (g *Gate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}
