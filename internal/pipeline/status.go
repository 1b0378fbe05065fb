package pipeline

import (
	"context"
	"fmt"

	"github.com/rzbill/txq/internal/breaker"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/metrics"
)

// Lane health labels.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// QueueStatus describes one lane.
type QueueStatus struct {
	Length           int     `json:"length"`
	SLATargetSeconds float64 `json:"sla_target"`
	Status           string  `json:"status"`
}

// DeadLetterStatus is the operator view of accumulated failures.
type DeadLetterStatus struct {
	Length       int                   `json:"length"`
	RecentErrors []metrics.ErrorSample `json:"recent_errors"`
}

// Status is the introspection view returned by Manager.Status.
type Status struct {
	Queues         map[string]QueueStatus `json:"queues"`
	Metrics        metrics.Snapshot       `json:"metrics"`
	CircuitBreaker breaker.Snapshot       `json:"circuit_breaker"`
	DeadLetter     DeadLetterStatus       `json:"dead_letter"`
}

// Health labels a lane length against the configured thresholds.
func (m *Manager) Health(length int) string {
	switch {
	case length < m.cfg.Health.Warning:
		return HealthHealthy
	case length < m.cfg.Health.Critical:
		return HealthWarning
	}
	return HealthCritical
}

// Status reads every lane length and the current metrics. It does not mutate
// the store.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	st := Status{Queues: make(map[string]QueueStatus, len(lane.All))}
	for _, p := range lane.All {
		n, err := m.deps.Store.Len(ctx, p)
		if err != nil {
			return Status{}, fmt.Errorf("pipeline: length of %s: %w", p, err)
		}
		st.Queues[p.String()] = QueueStatus{
			Length:           n,
			SLATargetSeconds: m.cfg.Lanes[p].SLATarget.Seconds(),
			Status:           m.Health(n),
		}
		if p == lane.DeadLetter {
			st.DeadLetter.Length = n
		}
	}
	st.Metrics = m.deps.Monitor.Snapshot()
	st.DeadLetter.RecentErrors = st.Metrics.RecentErrors
	st.CircuitBreaker = m.deps.Breaker.Snapshot()
	return st, nil
}
