package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/txq/internal/eventlog"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/metrics"
	"github.com/rzbill/txq/internal/retry"
	"github.com/rzbill/txq/pkg/log"
)

// Per-entry outcomes reported in BatchResult.Results.
const (
	ResultSucceeded  = "succeeded"
	ResultRetry      = "retry"
	ResultDeadLetter = "dead_letter"
	ResultRequeued   = "requeued"
	ResultDeferred   = "deferred"
	ResultSkipped    = "skipped"
)

// EntryResult describes what happened to one popped entry.
type EntryResult struct {
	EntryID         string     `json:"entry_id"`
	Result          string     `json:"result"`
	Attempts        int        `json:"attempts"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	MetSLA          *bool      `json:"met_sla,omitempty"`
	Error           string     `json:"error,omitempty"`
	FailureClass    string     `json:"failure_class,omitempty"`
	NextAttemptAt   *time.Time `json:"next_attempt_at,omitempty"`
	Reference       string     `json:"reference,omitempty"`
}

// BatchResult summarizes one ProcessBatch call. BatchSize is the number of
// entries popped; Processed counts successes.
type BatchResult struct {
	Lane      lane.Priority `json:"lane"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Requeued  int           `json:"requeued"`
	Deferred  int           `json:"deferred"`
	Skipped   int           `json:"skipped"`
	BatchSize int           `json:"batch_size"`
	// CircuitOpen is set when the batch stopped because of the breaker.
	CircuitOpen bool          `json:"circuit_open,omitempty"`
	Results     []EntryResult `json:"results"`
}

// ProcessBatch pops up to batchSize entries from p, oldest first, and runs
// each through the breaker. An empty lane ends the batch early.
func (m *Manager) ProcessBatch(ctx context.Context, p lane.Priority, batchSize int) (BatchResult, error) {
	res := BatchResult{Lane: p, Results: []EntryResult{}}
	switch {
	case !p.Valid():
		return res, fmt.Errorf("%w: %q", ErrUnknownLane, p)
	case p == lane.DeadLetter:
		return res, fmt.Errorf("%w: %q", ErrLaneNotProcessable, p)
	case batchSize <= 0:
		return res, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}
	timeout := m.cfg.Lanes[p].Timeout
	deferred := make(map[string]struct{})

	for res.BatchSize < batchSize {
		if err := ctx.Err(); err != nil {
			break
		}
		if m.deps.Breaker.Blocked() {
			res.CircuitOpen = true
			break
		}
		e, err := m.deps.Store.Pop(ctx, p)
		if errors.Is(err, lane.ErrEmpty) {
			break
		}
		if err != nil {
			return m.finish(ctx, res), fmt.Errorf("pipeline: pop %s: %w", p, err)
		}

		if _, seen := deferred[e.ID]; seen {
			// every remaining entry is waiting for its retry time
			if err := m.restore(ctx, e); err != nil {
				return m.finish(ctx, res), err
			}
			break
		}
		res.BatchSize++

		done, err := m.deps.Store.IsDone(ctx, e.ID)
		if err != nil {
			if rerr := m.restore(ctx, e); rerr != nil {
				m.logger.Error("entry restore failed", log.Str("entry_id", e.ID), log.Err(rerr))
			}
			return m.finish(ctx, res), fmt.Errorf("pipeline: done marker %s: %w", e.ID, err)
		}
		if done {
			res.Skipped++
			m.deps.Monitor.RecordSkip(p)
			res.Results = append(res.Results, EntryResult{EntryID: e.ID, Result: ResultSkipped, Attempts: e.Attempts})
			continue
		}

		if e.Exhausted() {
			if err := m.deps.DeadLetters.Move(context.WithoutCancel(ctx), e, retry.ErrMaxAttemptsExceeded.Error()); err != nil {
				return m.finish(ctx, res), err
			}
			res.Failed++
			m.deps.Monitor.RecordDeadLetter(p)
			res.Results = append(res.Results, EntryResult{
				EntryID: e.ID, Result: ResultDeadLetter, Attempts: e.Attempts, Error: retry.ErrMaxAttemptsExceeded.Error(),
			})
			continue
		}

		if p == lane.Retry && !e.Due(m.cfg.Now()) {
			deferred[e.ID] = struct{}{}
			if err := m.park(ctx, e); err != nil {
				return m.finish(ctx, res), err
			}
			res.Deferred++
			res.Results = append(res.Results, EntryResult{
				EntryID: e.ID, Result: ResultDeferred, Attempts: e.Attempts, NextAttemptAt: e.NextAttemptAt,
			})
			continue
		}

		er, stop, err := m.attempt(ctx, p, e, timeout, &res)
		if err != nil {
			return m.finish(ctx, res), err
		}
		res.Results = append(res.Results, er)
		if stop {
			break
		}
	}
	return m.finish(ctx, res), nil
}

// attempt executes e once and routes the outcome. stop is set when the
// breaker rejected the call.
func (m *Manager) attempt(ctx context.Context, p lane.Priority, e *lane.Entry, timeout time.Duration, res *BatchResult) (EntryResult, bool, error) {
	start := m.cfg.Now()
	out := m.execute(ctx, e, timeout)
	end := m.cfg.Now()
	elapsed := end.Sub(start)

	if out.Kind == OutcomeCircuitOpen {
		if err := m.restore(ctx, e); err != nil {
			return EntryResult{}, true, err
		}
		res.Requeued++
		res.CircuitOpen = true
		m.deps.Monitor.RecordRequeue(p)
		er := EntryResult{EntryID: e.ID, Result: ResultRequeued, Attempts: e.Attempts, Error: out.Err.Error()}
		m.emit(ctx, eventlog.Requeued, e.Priority, e, &er)
		return er, true, nil
	}

	e.Attempts++
	attemptedAt := end.UTC()
	e.LastAttemptedAt = &attemptedAt
	er := EntryResult{EntryID: e.ID, Attempts: e.Attempts, DurationSeconds: elapsed.Seconds()}

	if out.Kind == OutcomeOK {
		met := elapsed <= e.SLATarget()
		res.Processed++
		m.deps.Monitor.RecordAttempt(metrics.Sample{Lane: p, Duration: elapsed, MetSLA: met, Success: true, Timestamp: end})
		er.Result = ResultSucceeded
		er.MetSLA = &met
		er.Reference = out.Result.Reference
		m.emit(ctx, eventlog.Succeeded, p, e, &er)
		return er, false, nil
	}

	res.Failed++
	class := out.Kind.class()
	m.deps.Monitor.RecordAttempt(metrics.Sample{Lane: p, Duration: elapsed, Success: false, Timestamp: end})
	m.deps.Monitor.RecordFailure(e.ID, p, out.Err, class.String(), end)

	// a popped entry is owned by this batch until routed, even after ctx ends
	d, err := m.deps.Scheduler.HandleFailure(context.WithoutCancel(ctx), e, out.Err, class)
	if err != nil {
		return EntryResult{}, true, fmt.Errorf("pipeline: route failure of %s: %w", e.ID, err)
	}
	er.Error = out.Err.Error()
	er.FailureClass = class.String()
	if d.Action == retry.ActionDeadLetter {
		er.Result = ResultDeadLetter
		m.deps.Monitor.RecordDeadLetter(p)
	} else {
		er.Result = ResultRetry
		er.NextAttemptAt = e.NextAttemptAt
		m.deps.Monitor.RecordRetry(p)
		m.emit(ctx, eventlog.RetryScheduled, e.Priority, e, &er)
	}
	return er, false, nil
}

// restore puts an unprocessed entry back at the head of its lane.
func (m *Manager) restore(ctx context.Context, e *lane.Entry) error {
	if err := m.deps.Store.PushFront(context.WithoutCancel(ctx), e); err != nil {
		return fmt.Errorf("pipeline: restore %s: %w", e.ID, err)
	}
	return nil
}

// park moves a retry entry that is not yet due to the tail of its lane.
func (m *Manager) park(ctx context.Context, e *lane.Entry) error {
	if err := m.deps.Store.Push(context.WithoutCancel(ctx), e); err != nil {
		return fmt.Errorf("pipeline: park %s: %w", e.ID, err)
	}
	return nil
}

func (m *Manager) finish(ctx context.Context, res BatchResult) BatchResult {
	ctx = context.WithoutCancel(ctx)
	for _, p := range []lane.Priority{res.Lane, lane.Retry, lane.DeadLetter} {
		if n, err := m.deps.Store.Len(ctx, p); err == nil {
			m.deps.Monitor.SetLaneLength(p, n)
		}
	}
	if res.BatchSize > 0 {
		m.logger.Debug("batch processed",
			log.Str("lane", res.Lane.String()),
			log.Int("batch_size", res.BatchSize),
			log.Int("processed", res.Processed),
			log.Int("failed", res.Failed),
			log.Int("requeued", res.Requeued),
			log.Int("deferred", res.Deferred),
			log.Int("skipped", res.Skipped),
		)
	}
	return res
}
