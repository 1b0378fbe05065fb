package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	attempts     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	sla          *prometheus.CounterVec
	retries      *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	requeued     *prometheus.CounterVec
	laneLength   *prometheus.GaugeVec
	breakerState *prometheus.GaugeVec
}

func newCollectors(reg prometheus.Registerer) (*collectors, error) {
	c := &collectors{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txq", Name: "attempts_total",
			Help: "Execution attempts by lane and result.",
		}, []string{"lane", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "txq", Name: "attempt_duration_seconds",
			Help:    "Execution attempt latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.8, 1, 2, 5, 10, 30, 60},
		}, []string{"lane"}),
		sla: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txq", Name: "sla_total",
			Help: "Successful attempts by lane and whether the SLA target was met.",
		}, []string{"lane", "met"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txq", Name: "retries_scheduled_total",
			Help: "Entries moved to the retry lane.",
		}, []string{"lane"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txq", Name: "dead_lettered_total",
			Help: "Entries moved to the dead-letter lane.",
		}, []string{"lane"}),
		requeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txq", Name: "requeued_total",
			Help: "Entries put back because the circuit breaker was open.",
		}, []string{"lane"}),
		laneLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "txq", Name: "lane_length",
			Help: "Entries waiting per lane.",
		}, []string{"lane"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "txq", Name: "circuit_breaker_state",
			Help: "Circuit breaker position: 0 closed, 1 open, 2 half-open.",
		}, []string{"breaker"}),
	}
	for _, col := range []prometheus.Collector{
		c.attempts, c.duration, c.sla, c.retries, c.deadLettered, c.requeued, c.laneLength, c.breakerState,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *collectors) observeAttempt(s Sample) {
	lane := s.Lane.String()
	result := "failure"
	if s.Success {
		result = "success"
		c.sla.WithLabelValues(lane, strconv.FormatBool(s.MetSLA)).Inc()
	}
	c.attempts.WithLabelValues(lane, result).Inc()
	c.duration.WithLabelValues(lane).Observe(s.Duration.Seconds())
}

// StorageHook reports storage latencies; it satisfies pebblestore.MetricsHook.
type StorageHook struct {
	writes  prometheus.Histogram
	reads   prometheus.Histogram
	commits prometheus.Histogram
	bytes   *prometheus.CounterVec
}

// NewStorageHook registers storage collectors on reg.
func NewStorageHook(reg prometheus.Registerer) (*StorageHook, error) {
	buckets := prometheus.ExponentialBuckets(0.0001, 4, 8)
	h := &StorageHook{
		writes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "txq", Subsystem: "storage", Name: "write_seconds",
			Help: "Single-key write latency.", Buckets: buckets,
		}),
		reads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "txq", Subsystem: "storage", Name: "read_seconds",
			Help: "Point read latency.", Buckets: buckets,
		}),
		commits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "txq", Subsystem: "storage", Name: "batch_commit_seconds",
			Help: "Batch commit latency.", Buckets: buckets,
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txq", Subsystem: "storage", Name: "bytes_total",
			Help: "Bytes read and written.",
		}, []string{"op"}),
	}
	for _, col := range []prometheus.Collector{h.writes, h.reads, h.commits, h.bytes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *StorageHook) ObserveWrite(elapsed time.Duration, bytes int) {
	h.writes.Observe(elapsed.Seconds())
	h.bytes.WithLabelValues("write").Add(float64(bytes))
}

func (h *StorageHook) ObserveRead(elapsed time.Duration, bytes int) {
	h.reads.Observe(elapsed.Seconds())
	h.bytes.WithLabelValues("read").Add(float64(bytes))
}

func (h *StorageHook) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	h.commits.Observe(elapsed.Seconds())
	h.bytes.WithLabelValues("commit").Add(float64(bytes))
}
