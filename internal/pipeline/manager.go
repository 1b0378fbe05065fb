package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rzbill/txq/internal/breaker"
	"github.com/rzbill/txq/internal/classify"
	"github.com/rzbill/txq/internal/deadletter"
	"github.com/rzbill/txq/internal/eventlog"
	"github.com/rzbill/txq/internal/executor"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/metrics"
	"github.com/rzbill/txq/internal/retry"
	"github.com/rzbill/txq/pkg/log"
)

// Deps are the collaborators a Manager drives.
type Deps struct {
	Store       lane.Store
	Executor    executor.Executor
	Breaker     *breaker.Breaker
	Classifier  *classify.Classifier
	Scheduler   *retry.Scheduler
	DeadLetters *deadletter.Handler
	Monitor     *metrics.Monitor
	// Events is optional.
	Events EventRecorder
	Logger log.Logger
}

// Manager is safe for concurrent use.
type Manager struct {
	deps   Deps
	cfg    Config
	logger log.Logger

	inline     *semaphore.Weighted
	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewManager validates deps and fills cfg defaults.
func NewManager(deps Deps, cfg Config) (*Manager, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Executor == nil:
		return nil, errors.New("pipeline: executor is required")
	case deps.Breaker == nil:
		return nil, errors.New("pipeline: breaker is required")
	case deps.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case deps.Scheduler == nil:
		return nil, errors.New("pipeline: retry scheduler is required")
	case deps.DeadLetters == nil:
		return nil, errors.New("pipeline: dead-letter handler is required")
	case deps.Monitor == nil:
		return nil, errors.New("pipeline: monitor is required")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = log.NewLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:       deps,
		cfg:        cfg,
		logger:     deps.Logger.With(log.Component("pipeline")),
		inline:     semaphore.NewWeighted(cfg.Inline.MaxConcurrent),
		baseCtx:    ctx,
		cancelBase: cancel,
	}, nil
}

// Receipt acknowledges an enqueued entry.
type Receipt struct {
	EntryID  string        `json:"entry_id"`
	Priority lane.Priority `json:"priority"`
	// Lane is where the durable copy lives; immediate entries are stored in high.
	Lane lane.Priority `json:"lane"`
	// EstimatedProcessingTime is in seconds.
	EstimatedProcessingTime float64   `json:"estimated_processing_time"`
	EnqueuedAt              time.Time `json:"enqueued_at"`
}

// LaneConfig returns the effective configuration of p.
func (m *Manager) LaneConfig(p lane.Priority) (LaneConfig, bool) {
	lc, ok := m.cfg.Lanes[p]
	return lc, ok
}

// Enqueue validates payload and appends a new entry to the tail of priority's
// lane. slaTarget <= 0 uses the lane default. Immediate entries are stored in
// the high lane and also attempted inline.
func (m *Manager) Enqueue(ctx context.Context, payload json.RawMessage, priority lane.Priority, slaTarget time.Duration) (Receipt, error) {
	if !priority.Enqueueable() {
		return Receipt{}, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	if err := m.cfg.Validator.Validate(payload); err != nil {
		if !errors.Is(err, ErrInvalidPayload) {
			err = &InvalidPayloadError{Reason: err.Error()}
		}
		m.logger.Debug("payload rejected", log.Str("priority", priority.String()), log.F("payload", string(payload)), log.Err(err))
		return Receipt{}, err
	}
	if m.isClosed() {
		return Receipt{}, ErrClosed
	}

	target := priority
	if priority == lane.Immediate {
		target = lane.High
	}
	if slaTarget <= 0 {
		slaTarget = m.cfg.Lanes[priority].SLATarget
	}
	now := m.cfg.Now().UTC()
	e := &lane.Entry{
		ID:               m.cfg.NewID(),
		Priority:         target,
		OriginalPriority: priority,
		Payload:          append(json.RawMessage(nil), payload...),
		MaxAttempts:      m.deps.Scheduler.Policy(priority).MaxAttempts,
		SLATargetSeconds: slaTarget.Seconds(),
		EnqueuedAt:       now,
	}
	if err := m.deps.Store.Push(ctx, e); err != nil {
		return Receipt{}, fmt.Errorf("pipeline: enqueue %s: %w", e.ID, err)
	}

	length, err := m.deps.Store.Len(ctx, target)
	if err != nil {
		m.logger.Warn("lane length unavailable", log.Str("lane", target.String()), log.Err(err))
		length = 1
	}
	m.deps.Monitor.SetLaneLength(target, length)
	m.emit(ctx, eventlog.Enqueued, target, e, nil)

	if priority == lane.Immediate && !m.cfg.Inline.Disabled {
		m.attemptInline(e.Clone())
	}

	m.logger.Debug("entry enqueued",
		log.Str("entry_id", e.ID),
		log.Str("priority", priority.String()),
		log.Str("lane", target.String()),
		log.Int("lane_length", length),
	)
	return Receipt{
		EntryID:                 e.ID,
		Priority:                priority,
		Lane:                    target,
		EstimatedProcessingTime: m.estimate(target, slaTarget, length).Seconds(),
		EnqueuedAt:              now,
	}, nil
}

// estimate is the SLA target times the number of batches ahead of the entry.
func (m *Manager) estimate(p lane.Priority, sla time.Duration, length int) time.Duration {
	batch := m.cfg.Lanes[p].BatchSize
	batches := 1
	if batch > 0 && length > 0 {
		batches = int(math.Ceil(float64(length) / float64(batch)))
	}
	if batches < 1 {
		batches = 1
	}
	return sla * time.Duration(batches)
}

// attemptInline runs e once outside the lanes. The durable copy is only
// marked done on success; any other result leaves it for the next sweep.
func (m *Manager) attemptInline(e *lane.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if !m.inline.TryAcquire(1) {
		m.logger.Debug("inline attempt skipped, all slots busy", log.Str("entry_id", e.ID))
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.inline.Release(1)

		start := m.cfg.Now()
		out := m.execute(m.baseCtx, e, m.cfg.Inline.Timeout)
		elapsed := m.cfg.Now().Sub(start)

		switch out.Kind {
		case OutcomeOK:
			m.deps.Monitor.RecordAttempt(metrics.Sample{
				Lane: lane.Immediate, Duration: elapsed, MetSLA: elapsed <= e.SLATarget(), Success: true, Timestamp: m.cfg.Now(),
			})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.deps.Store.MarkDone(ctx, e.ID); err != nil {
				m.logger.Warn("inline success not recorded, entry will run again", log.Str("entry_id", e.ID), log.Err(err))
				return
			}
			m.emitInline(ctx, e)
		case OutcomeCircuitOpen:
			m.logger.Debug("inline attempt rejected by breaker", log.Str("entry_id", e.ID))
		default:
			m.deps.Monitor.RecordAttempt(metrics.Sample{
				Lane: lane.Immediate, Duration: elapsed, Success: false, Timestamp: m.cfg.Now(),
			})
			m.deps.Monitor.RecordFailure(e.ID, lane.Immediate, out.Err, out.Kind.String(), m.cfg.Now())
			m.logger.Debug("inline attempt failed, durable copy kept",
				log.Str("entry_id", e.ID), log.Str("outcome", out.Kind.String()), log.Err(out.Err))
		}
	}()
}

// execute runs one guarded attempt and classifies its result.
func (m *Manager) execute(ctx context.Context, e *lane.Entry, timeout time.Duration) Outcome {
	var res executor.Result
	err := m.deps.Breaker.Call(ctx, timeout, func(ctx context.Context) error {
		r, err := m.deps.Executor.Execute(ctx, e.Payload)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err == nil {
		return Outcome{Kind: OutcomeOK, Result: res}
	}
	if errors.Is(err, breaker.ErrOpen) {
		return Outcome{Kind: OutcomeCircuitOpen, Err: err, Reason: "circuit open"}
	}

	class, reason := m.deps.Classifier.Classify(err)
	var te *breaker.TimeoutError
	if errors.As(err, &te) {
		err = &ExecutionTimeoutError{EntryID: e.ID, Timeout: te.Timeout, Err: err}
	} else {
		err = &ExecutionFailureError{EntryID: e.ID, Err: err}
	}
	kind := OutcomeRetriable
	if class == classify.Permanent {
		kind = OutcomePermanent
	}
	return Outcome{Kind: kind, Err: err, Reason: reason}
}

// Close cancels in-flight inline attempts and waits for them.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.cancelBase()
	m.wg.Wait()
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
