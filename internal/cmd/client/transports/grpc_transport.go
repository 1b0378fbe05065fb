package transports

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
)

// GrpcTransport implements PipelineTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

type rpc func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

// call dials, invokes the method selected by pick with req and decodes the
// reply.
func (t *GrpcTransport) call(ctx context.Context, req any, pick func(txqv1.PipelineServiceClient) rpc) (Response, error) {
	in, err := txqv1.ToStruct(req)
	if err != nil {
		return nil, err
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	out, err := pick(txqv1.NewPipelineServiceClient(conn))(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Enqueue submits one payload.
func (t *GrpcTransport) Enqueue(ctx context.Context, req txqv1.EnqueueRequest) (Response, error) {
	return t.call(ctx, req, func(c txqv1.PipelineServiceClient) rpc { return c.Enqueue })
}

// ProcessBatch drains one batch from a lane.
func (t *GrpcTransport) ProcessBatch(ctx context.Context, req txqv1.ProcessBatchRequest) (Response, error) {
	return t.call(ctx, req, func(c txqv1.PipelineServiceClient) rpc { return c.ProcessBatch })
}

// Status reads lane lengths, metrics and the breaker.
func (t *GrpcTransport) Status(ctx context.Context) (Response, error) {
	return t.call(ctx, nil, func(c txqv1.PipelineServiceClient) rpc { return c.GetQueueStatus })
}

// ListDeadLetters reads the oldest dead-lettered entries.
func (t *GrpcTransport) ListDeadLetters(ctx context.Context, req txqv1.ListDeadLettersRequest) (Response, error) {
	return t.call(ctx, req, func(c txqv1.PipelineServiceClient) rpc { return c.ListDeadLetters })
}

// ReplayDeadLetters requeues dead-lettered entries.
func (t *GrpcTransport) ReplayDeadLetters(ctx context.Context, req txqv1.ReplayDeadLettersRequest) (Response, error) {
	return t.call(ctx, req, func(c txqv1.PipelineServiceClient) rpc { return c.ReplayDeadLetters })
}
