package manager

import (
	"time"

	"chesscomm/pkg/types"
)

// State values reported by Status.
const (
	StateReady    = "ready"
	StateLoading  = "loading"
	StateDraining = "draining"
)

// Ready reports whether new generations can be served.
func (m *Manager) Ready() bool {
	if m.draining.Load() || m.gen == nil {
		return false
	}
	return m.ready == nil || m.ready()
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	state := StateReady
	switch {
	case m.draining.Load():
		state = StateDraining
	case !m.Ready():
		state = StateLoading
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.StatusResponse{
		State:         state,
		Inflight:      int(m.inflight.Load()),
		Waiting:       int(m.waiting.Load()),
		MaxConcurrent: m.capacity,
		MaxQueueDepth: m.maxQueueDepth,
		Generations:   m.generations,
		CPUFallbacks:  m.fallbacks,
		Failures:      m.failures,
		LastError:     m.lastErr,
		UptimeSec:     int64(time.Since(m.startTime).Seconds()),
	}
}

// Drain rejects new work and waits up to the drain timeout for in-flight
// generations to finish. It reports whether everything finished in time.
func (m *Manager) Drain() bool {
	m.draining.Store(true)
	deadline := time.Now().Add(m.drainTimeout)
	for {
		if m.inflight.Load() == 0 && m.waiting.Load() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			m.log.Warn().Int64("inflight", m.inflight.Load()).Msg("drain timeout")
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
