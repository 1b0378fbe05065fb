package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/txq/internal/breaker"
)

var (
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidPriority    = errors.New("priority is not enqueueable")
	ErrUnknownLane        = errors.New("unknown lane")
	ErrLaneNotProcessable = errors.New("lane is not processable")
	ErrInvalidBatchSize   = errors.New("batch size must be positive")
	ErrClosed             = errors.New("pipeline closed")
)

// CircuitOpenError is returned when the breaker rejects an execution.
type CircuitOpenError = breaker.OpenError

// InvalidPayloadError rejects a submission at enqueue; nothing is queued.
type InvalidPayloadError struct {
	Field  string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid payload: field %q %s", e.Field, e.Reason)
}

func (e *InvalidPayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// ExecutionTimeoutError is an attempt that exceeded the lane timeout.
type ExecutionTimeoutError struct {
	EntryID string
	Timeout time.Duration
	Err     error
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("entry %s timed out after %s", e.EntryID, e.Timeout)
}

func (e *ExecutionTimeoutError) Unwrap() error { return e.Err }

// ExecutionFailureError is an attempt the executor reported as failed.
type ExecutionFailureError struct {
	EntryID string
	Err     error
}

func (e *ExecutionFailureError) Error() string {
	return fmt.Sprintf("entry %s failed: %v", e.EntryID, e.Err)
}

func (e *ExecutionFailureError) Unwrap() error { return e.Err }
