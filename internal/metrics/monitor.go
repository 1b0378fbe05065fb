// Package metrics tracks per-lane throughput, SLA compliance and recent
// failures, and mirrors them to Prometheus collectors.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/txq/internal/lane"
)

// Sample is one completed execution attempt.
type Sample struct {
	Lane      lane.Priority
	Duration  time.Duration
	MetSLA    bool
	Success   bool
	Timestamp time.Time
}

// ErrorSample is a recent failure kept for operator visibility.
type ErrorSample struct {
	EntryID string    `json:"entry_id"`
	Lane    string    `json:"lane"`
	Error   string    `json:"error"`
	Class   string    `json:"class"`
	At      time.Time `json:"at"`
}

// Options configures a Monitor.
type Options struct {
	// WindowSize bounds the rolling latency window per lane (default 100).
	WindowSize int
	// RecentErrors bounds the error sample list (default 20).
	RecentErrors int
	// Registerer receives the Prometheus collectors; nil skips export.
	Registerer prometheus.Registerer
}

type laneStats struct {
	processed    uint64
	succeeded    uint64
	failed       uint64
	retried      uint64
	deadLettered uint64
	requeued     uint64
	skipped      uint64
	slaMet       uint64
	slaMissed    uint64
	lastSampleAt time.Time
	window       *window
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	windowSize int
	maxErrors  int
	lanes      map[lane.Priority]*laneStats
	recent     []ErrorSample
	prom       *collectors
}

// NewMonitor builds a Monitor and registers its collectors.
func NewMonitor(opts Options) (*Monitor, error) {
	if opts.WindowSize <= 0 {
		opts.WindowSize = 100
	}
	if opts.RecentErrors <= 0 {
		opts.RecentErrors = 20
	}
	m := &Monitor{
		windowSize: opts.WindowSize,
		maxErrors:  opts.RecentErrors,
		lanes:      make(map[lane.Priority]*laneStats, len(lane.All)),
	}
	for _, p := range lane.All {
		m.lanes[p] = &laneStats{window: newWindow(opts.WindowSize)}
	}
	if opts.Registerer != nil {
		c, err := newCollectors(opts.Registerer)
		if err != nil {
			return nil, err
		}
		m.prom = c
	}
	return m, nil
}

func (m *Monitor) stats(p lane.Priority) *laneStats {
	s, ok := m.lanes[p]
	if !ok {
		s = &laneStats{window: newWindow(m.windowSize)}
		m.lanes[p] = s
	}
	return s
}

// RecordAttempt records a finished execution. SLA compliance is only
// tracked for successes.
func (m *Monitor) RecordAttempt(s Sample) {
	m.mu.Lock()
	st := m.stats(s.Lane)
	st.processed++
	st.window.add(s.Duration)
	st.lastSampleAt = s.Timestamp
	if s.Success {
		st.succeeded++
		if s.MetSLA {
			st.slaMet++
		} else {
			st.slaMissed++
		}
	} else {
		st.failed++
	}
	m.mu.Unlock()

	if m.prom != nil {
		m.prom.observeAttempt(s)
	}
}

// RecordFailure keeps err as a recent error sample.
func (m *Monitor) RecordFailure(entryID string, p lane.Priority, err error, class string, at time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, ErrorSample{EntryID: entryID, Lane: p.String(), Error: err.Error(), Class: class, At: at.UTC()})
	if over := len(m.recent) - m.maxErrors; over > 0 {
		m.recent = append(m.recent[:0:0], m.recent[over:]...)
	}
}

// RecordRetry counts an entry scheduled into the retry lane from p.
func (m *Monitor) RecordRetry(p lane.Priority) {
	m.mu.Lock()
	m.stats(p).retried++
	m.mu.Unlock()
	if m.prom != nil {
		m.prom.retries.WithLabelValues(p.String()).Inc()
	}
}

// RecordDeadLetter counts an entry dead-lettered from p.
func (m *Monitor) RecordDeadLetter(p lane.Priority) {
	m.mu.Lock()
	m.stats(p).deadLettered++
	m.mu.Unlock()
	if m.prom != nil {
		m.prom.deadLettered.WithLabelValues(p.String()).Inc()
	}
}

// RecordRequeue counts an entry put back because the breaker was open.
func (m *Monitor) RecordRequeue(p lane.Priority) {
	m.mu.Lock()
	m.stats(p).requeued++
	m.mu.Unlock()
	if m.prom != nil {
		m.prom.requeued.WithLabelValues(p.String()).Inc()
	}
}

// RecordSkip counts an entry consumed without execution.
func (m *Monitor) RecordSkip(p lane.Priority) {
	m.mu.Lock()
	m.stats(p).skipped++
	m.mu.Unlock()
}

// SetLaneLength publishes the current depth of p.
func (m *Monitor) SetLaneLength(p lane.Priority, n int) {
	if m.prom != nil {
		m.prom.laneLength.WithLabelValues(p.String()).Set(float64(n))
	}
}

// SetBreakerState publishes a breaker position (0 closed, 1 open, 2 half-open).
func (m *Monitor) SetBreakerState(name string, state int) {
	if m.prom != nil {
		m.prom.breakerState.WithLabelValues(name).Set(float64(state))
	}
}

// LaneSnapshot summarizes one lane.
type LaneSnapshot struct {
	Processed         uint64     `json:"processed"`
	Succeeded         uint64     `json:"succeeded"`
	Failed            uint64     `json:"failed"`
	Retried           uint64     `json:"retried"`
	DeadLettered      uint64     `json:"dead_lettered"`
	Requeued          uint64     `json:"requeued"`
	Skipped           uint64     `json:"skipped"`
	SLAMet            uint64     `json:"sla_met"`
	SLAMissed         uint64     `json:"sla_missed"`
	SLAComplianceRate float64    `json:"sla_compliance_rate"`
	AvgLatencySeconds float64    `json:"avg_latency_seconds"`
	P95LatencySeconds float64    `json:"p95_latency_seconds"`
	WindowSamples     int        `json:"window_samples"`
	LastSampleAt      *time.Time `json:"last_sample_at,omitempty"`
}

// Snapshot is the full metrics view.
type Snapshot struct {
	Lanes        map[string]LaneSnapshot `json:"lanes"`
	RecentErrors []ErrorSample           `json:"recent_errors"`
}

// Snapshot copies the current counters.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Snapshot{
		Lanes:        make(map[string]LaneSnapshot, len(m.lanes)),
		RecentErrors: append([]ErrorSample{}, m.recent...),
	}
	for p, st := range m.lanes {
		ls := LaneSnapshot{
			Processed:         st.processed,
			Succeeded:         st.succeeded,
			Failed:            st.failed,
			Retried:           st.retried,
			DeadLettered:      st.deadLettered,
			Requeued:          st.requeued,
			Skipped:           st.skipped,
			SLAMet:            st.slaMet,
			SLAMissed:         st.slaMissed,
			AvgLatencySeconds: st.window.mean().Seconds(),
			P95LatencySeconds: st.window.percentile(0.95).Seconds(),
			WindowSamples:     st.window.len(),
		}
		if total := st.slaMet + st.slaMissed; total > 0 {
			ls.SLAComplianceRate = float64(st.slaMet) / float64(total)
		}
		if !st.lastSampleAt.IsZero() {
			t := st.lastSampleAt.UTC()
			ls.LastSampleAt = &t
		}
		out.Lanes[p.String()] = ls
	}
	return out
}

// RecentErrors returns up to limit of the newest error samples, newest last.
func (m *Monitor) RecentErrors(limit int) []ErrorSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if limit > 0 && len(m.recent) > limit {
		start = len(m.recent) - limit
	}
	return append([]ErrorSample{}, m.recent[start:]...)
}
