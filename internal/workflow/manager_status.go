package workflow

import (
	"context"
	"maps"
	"slices"

	"vidpipe/internal/queue"
)

// StatusSummary is a point-in-time view of the manager and queue.
type StatusSummary struct {
	Running    bool
	Workers    int
	QueueDepth int
	InFlight   []int64
	LastError  string
	LastJob    *queue.Job
	QueueStats map[queue.Status]int
}

// Status reports the manager state along with per-status job counts.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running: m.running,
		Workers: m.workers,
	}
	if m.queued != nil {
		summary.QueueDepth = len(m.queued)
	}
	summary.InFlight = slices.Sorted(maps.Keys(m.inFlight))
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copied := *m.lastJob
		summary.LastJob = &copied
	}
	m.mu.RUnlock()

	if stats, err := m.store.Stats(ctx); err == nil {
		summary.QueueStats = stats
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	m.lastJob = job
	m.mu.Unlock()
}

func (m *Manager) inFlightIDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Collect(maps.Keys(m.inFlight))
}

func (m *Manager) markInFlight(id int64) {
	m.mu.Lock()
	m.inFlight[id] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) clearInFlight(id int64) {
	m.mu.Lock()
	delete(m.inFlight, id)
	m.mu.Unlock()
}
