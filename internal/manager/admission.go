package manager

import "context"

// Backpressure reasons reported by too busy errors.
const (
	ReasonDraining  = "draining"
	ReasonQueueFull = "queue_full"
	ReasonWait      = "queue_wait"
)

// beginGeneration reserves a queue slot and then a generation slot.
// Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	noop := func() {}
	if m.draining.Load() {
		return noop, ErrTooBusy(ReasonDraining)
	}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return noop, err
	}

	if n := m.waiting.Add(1); n > int64(m.maxQueueDepth) {
		m.waiting.Add(-1)
		return noop, ErrTooBusy(ReasonQueueFull)
	}
	wctx, cancel := context.WithTimeout(ctx, m.maxWait)
	defer cancel()
	err := m.sem.Acquire(wctx, 1)
	m.waiting.Add(-1)
	if err != nil {
		if ctx.Err() != nil {
			return noop, ctx.Err()
		}
		return noop, ErrTooBusy(ReasonWait)
	}
	m.inflight.Add(1)
	return func() {
		m.inflight.Add(-1)
		m.sem.Release(1)
	}, nil
}
