// Package retry computes exponential backoff and routes failed entries to the
// retry lane or the dead-letter lane.
package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy is the per-lane retry budget and backoff curve.
type Policy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
	// MaxDelay caps a single delay; zero leaves it uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy is 3 attempts with delays of 2s, 4s, 8s... capped at 5m.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Minute}
}

// Validate rejects policies that cannot produce a sane schedule.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts <= 0:
		return fmt.Errorf("retry: max attempts must be positive, got %d", p.MaxAttempts)
	case p.BaseDelay < 0:
		return errors.New("retry: base delay must not be negative")
	case p.BackoffFactor < 1:
		return fmt.Errorf("retry: backoff factor must be >= 1, got %v", p.BackoffFactor)
	case p.MaxDelay < 0:
		return errors.New("retry: max delay must not be negative")
	}
	return nil
}

// Delay returns BaseDelay * BackoffFactor^(attempt-1) for attempt >= 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(math.MaxInt64) {
		if p.MaxDelay > 0 {
			return p.MaxDelay
		}
		return time.Duration(math.MaxInt64)
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
