package engine

import (
	"sync"
	"time"

	"github.com/bolworks/api/internal/model"
)

// Metrics aggregates processing outcomes. Writes happen on every terminal
// outcome under one mutex so concurrent workers never lose an increment;
// Snapshot derives the rates.
type Metrics struct {
	mu                  sync.Mutex
	startedAt           time.Time
	jobsProcessed       int64
	jobsFailed          int64
	totalProcessingSecs float64
}

// NewMetrics starts the uptime clock.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordSuccess counts a completed job and its processing duration.
func (m *Metrics) RecordSuccess(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsProcessed++
	m.totalProcessingSecs += d.Seconds()
}

// RecordFailure counts a failed job.
func (m *Metrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsFailed++
}

// Snapshot returns the derived statistics. Rates are defined as 0 until the
// first job (no division by zero).
func (m *Metrics) Snapshot() model.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	uptime := time.Since(m.startedAt).Seconds()
	snap := model.MetricsSnapshot{
		UptimeSeconds: uptime,
		JobsProcessed: m.jobsProcessed,
		JobsFailed:    m.jobsFailed,
	}

	if total := m.jobsProcessed + m.jobsFailed; total > 0 {
		snap.SuccessRate = float64(m.jobsProcessed) / float64(total)
	}
	if m.jobsProcessed > 0 {
		snap.AvgProcessingTime = m.totalProcessingSecs / float64(m.jobsProcessed)
	}
	if uptime > 0 {
		snap.JobsPerHour = float64(m.jobsProcessed) / (uptime / 3600)
	}
	return snap
}
