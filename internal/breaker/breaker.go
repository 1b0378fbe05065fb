// Package breaker implements a three-state circuit breaker guarding calls to
// an unreliable downstream dependency.
//
// Closed: calls pass through; each failure increments a counter and reaching
// the threshold opens the breaker. Open: calls fail fast with *OpenError until
// the recovery timeout elapses. Half-open: exactly one trial call is admitted;
// success closes the breaker and clears the counter, failure re-opens it.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/txq/pkg/log"
)

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen matches every *OpenError.
var ErrOpen = errors.New("circuit breaker is open")

// OpenError is returned when a call is rejected without reaching the downstream.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open until %s", e.Name, e.RetryAt.UTC().Format(time.RFC3339))
}

func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// TimeoutError reports a call that exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// PanicError wraps a panic raised by the guarded function.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string { return fmt.Sprintf("guarded call panicked: %v", e.Value) }

// Options configures a Breaker.
type Options struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	Now              func() time.Time
	Logger           log.Logger
	// OnStateChange is invoked outside the lock after every transition.
	OnStateChange func(name string, from, to State)
}

// Snapshot is a point-in-time view of the breaker.
type Snapshot struct {
	Name                   string     `json:"name"`
	State                  string     `json:"state"`
	FailureCount           int        `json:"failure_count"`
	FailureThreshold       int        `json:"failure_threshold"`
	RecoveryTimeoutSeconds float64    `json:"recovery_timeout_seconds"`
	OpenedAt               *time.Time `json:"opened_at,omitempty"`
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	opts Options

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// New returns a closed breaker. Threshold defaults to 5 and recovery to 60s.
func New(name string, opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.RecoveryTimeout <= 0 {
		opts.RecoveryTimeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	opts.Logger = opts.Logger.With(log.Component("breaker"), log.Str("breaker", name))
	return &Breaker{name: name, opts: opts}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Call runs fn under timeout unless the breaker rejects it. A zero timeout
// runs fn with ctx unchanged.
func (b *Breaker) Call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	trial, err := b.acquire()
	if err != nil {
		return err
	}
	err = run(ctx, timeout, fn)
	b.record(trial, err)
	return err
}

// acquire admits or rejects a call and reports whether it is the half-open trial.
func (b *Breaker) acquire() (bool, error) {
	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	switch b.state {
	case Closed:
		return false, nil
	case Open:
		if b.opts.Now().Sub(b.openedAt) < b.opts.RecoveryTimeout {
			return false, b.openErrorLocked()
		}
		transition = b.setStateLocked(HalfOpen)
		b.trialInFlight = true
		return true, nil
	default:
		if b.trialInFlight {
			return false, b.openErrorLocked()
		}
		b.trialInFlight = true
		return true, nil
	}
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	if trial {
		b.trialInFlight = false
	}
	if err == nil {
		switch {
		case trial:
			b.failures = 0
			b.openedAt = time.Time{}
			transition = b.setStateLocked(Closed)
		case b.failures > 0:
			b.failures--
		}
		return
	}

	b.failures++
	switch {
	case trial:
		b.openedAt = b.opts.Now()
		transition = b.setStateLocked(Open)
	case b.state == Closed && b.failures >= b.opts.FailureThreshold:
		b.openedAt = b.opts.Now()
		transition = b.setStateLocked(Open)
	}
}

// setStateLocked changes state and returns the notification to run after unlock.
func (b *Breaker) setStateLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	failures := b.failures
	return func() {
		fields := []log.Field{log.Str("from", from.String()), log.Str("to", to.String()), log.Int("failure_count", failures)}
		if to == Open {
			b.opts.Logger.Warn("circuit breaker opened", fields...)
		} else {
			b.opts.Logger.Info("circuit breaker state changed", fields...)
		}
		if b.opts.OnStateChange != nil {
			b.opts.OnStateChange(b.name, from, to)
		}
	}
}

func (b *Breaker) openErrorLocked() error {
	return &OpenError{Name: b.name, RetryAt: b.openedAt.Add(b.opts.RecoveryTimeout)}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Blocked reports whether a call made now would be rejected.
func (b *Breaker) Blocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return b.opts.Now().Sub(b.openedAt) < b.opts.RecoveryTimeout
	case HalfOpen:
		return b.trialInFlight
	default:
		return false
	}
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Name:                   b.name,
		State:                  b.state.String(),
		FailureCount:           b.failures,
		FailureThreshold:       b.opts.FailureThreshold,
		RecoveryTimeoutSeconds: b.opts.RecoveryTimeout.Seconds(),
	}
	if !b.openedAt.IsZero() {
		t := b.openedAt.UTC()
		s.OpenedAt = &t
	}
	return s
}

func run(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	cctx := ctx
	cancel := func() {}
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r}
			}
		}()
		done <- fn(cctx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Timeout: timeout}
		}
		return err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TimeoutError{Timeout: timeout}
	}
}
