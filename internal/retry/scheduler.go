package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/txq/internal/classify"
	"github.com/rzbill/txq/internal/deadletter"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/pkg/log"
)

// ErrMaxAttemptsExceeded is the dead-letter reason for exhausted entries.
var ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

// Action is what happens to a failed entry.
type Action int

const (
	ActionRetry Action = iota
	ActionDeadLetter
)

func (a Action) String() string {
	if a == ActionDeadLetter {
		return "dead_letter"
	}
	return "retry"
}

// Decision is the routing outcome for one failure.
type Decision struct {
	Action        Action
	Delay         time.Duration
	NextAttemptAt time.Time
	Reason        string
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// Policies is keyed by the lane an entry was submitted to.
	Policies map[lane.Priority]Policy
	Now      func() time.Time
	Logger   log.Logger
}

// Scheduler never sleeps: it stamps next_attempt_at and leaves the wait to the
// periodic retry-lane sweep.
type Scheduler struct {
	store    lane.Store
	dlq      *deadletter.Handler
	policies map[lane.Priority]Policy
	now      func() time.Time
	logger   log.Logger
}

// NewScheduler wires a scheduler to store and dlq.
func NewScheduler(store lane.Store, dlq *deadletter.Handler, opts SchedulerOptions) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	policies := make(map[lane.Priority]Policy, len(opts.Policies))
	for p, pol := range opts.Policies {
		policies[p] = pol
	}
	return &Scheduler{
		store:    store,
		dlq:      dlq,
		policies: policies,
		now:      opts.Now,
		logger:   opts.Logger.With(log.Component("retry")),
	}
}

// Policy returns the policy for lane p, falling back to DefaultPolicy.
func (s *Scheduler) Policy(p lane.Priority) Policy {
	if pol, ok := s.policies[p]; ok {
		return pol
	}
	return DefaultPolicy()
}

// Decide routes an entry whose attempt count already includes the failure.
func (s *Scheduler) Decide(e *lane.Entry, class classify.Class) Decision {
	now := s.now().UTC()
	switch {
	case class == classify.Permanent:
		return Decision{Action: ActionDeadLetter, Reason: "permanent failure"}
	case e.Exhausted():
		return Decision{Action: ActionDeadLetter, Reason: ErrMaxAttemptsExceeded.Error()}
	}
	delay := s.Policy(e.PolicyLane()).Delay(e.Attempts)
	return Decision{Action: ActionRetry, Delay: delay, NextAttemptAt: now.Add(delay), Reason: "retriable failure"}
}

// HandleFailure records cause on e and moves it to the retry or dead-letter lane.
func (s *Scheduler) HandleFailure(ctx context.Context, e *lane.Entry, cause error, class classify.Class) (Decision, error) {
	if cause != nil {
		e.LastError = cause.Error()
	}
	e.FailureClass = class.String()
	d := s.Decide(e, class)

	if d.Action == ActionDeadLetter {
		if err := s.dlq.Move(ctx, e, d.Reason); err != nil {
			return d, err
		}
		return d, nil
	}

	if e.OriginalPriority == "" {
		e.OriginalPriority = e.Priority
	}
	next := d.NextAttemptAt
	e.Priority = lane.Retry
	e.NextAttemptAt = &next
	if err := s.store.Push(ctx, e); err != nil {
		return d, fmt.Errorf("retry: schedule %s: %w", e.ID, err)
	}
	s.logger.Debug("entry scheduled for retry",
		log.Str("entry_id", e.ID),
		log.Int("attempts", e.Attempts),
		log.Int("max_attempts", e.MaxAttempts),
		log.Dur("delay", d.Delay),
	)
	return d, nil
}
