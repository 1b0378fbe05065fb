// Package executor defines the downstream submission call guarded by the
// pipeline and ships two adapters: an HTTP poster and an always-accept stub.
package executor

import (
	"context"
	"encoding/json"
)

// Result is what the downstream returned for one submission.
type Result struct {
	StatusCode int             `json:"status_code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Reference  string          `json:"reference,omitempty"`
}

// Executor submits one payload. Implementations must honor ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, payload json.RawMessage) (Result, error)
}

// Func adapts a function to Executor.
type Func func(ctx context.Context, payload json.RawMessage) (Result, error)

func (f Func) Execute(ctx context.Context, payload json.RawMessage) (Result, error) {
	return f(ctx, payload)
}

// Accept acknowledges every payload without contacting anything.
type Accept struct{}

func (Accept) Execute(ctx context.Context, _ json.RawMessage) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{StatusCode: 200, Reference: "accepted"}, nil
}
