// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
)

// Response is a decoded server reply, printed as JSON by the CLI.
type Response = map[string]any

// PipelineTransport abstracts the transport used by the CLI.
type PipelineTransport interface {
	Enqueue(ctx context.Context, req txqv1.EnqueueRequest) (Response, error)
	ProcessBatch(ctx context.Context, req txqv1.ProcessBatchRequest) (Response, error)
	Status(ctx context.Context) (Response, error)
	ListDeadLetters(ctx context.Context, req txqv1.ListDeadLettersRequest) (Response, error)
	ReplayDeadLetters(ctx context.Context, req txqv1.ReplayDeadLettersRequest) (Response, error)
}
