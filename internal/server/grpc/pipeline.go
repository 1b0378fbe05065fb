package grpcserver

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/pipeline"
	"github.com/rzbill/txq/internal/runtime"
	"github.com/rzbill/txq/pkg/log"
)

const defaultDeadLetterLimit = 100

type pipelineSvc struct {
	txqv1.UnimplementedPipelineServiceServer
	rt     *runtime.Runtime
	logger log.Logger
}

func (s *pipelineSvc) Enqueue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req txqv1.EnqueueRequest
	if err := txqv1.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Priority == "" {
		req.Priority = lane.Standard.String()
	}
	p, err := lane.Parse(req.Priority)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.SLATarget < 0 {
		return nil, status.Error(codes.InvalidArgument, "sla_target must not be negative")
	}
	receipt, err := s.rt.Manager().Enqueue(ctx, req.Payload, p, time.Duration(req.SLATarget*float64(time.Second)))
	if err != nil {
		return nil, s.toStatus("enqueue", err)
	}
	return reply(receipt)
}

func (s *pipelineSvc) ProcessBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req txqv1.ProcessBatchRequest
	if err := txqv1.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p, err := lane.Parse(req.Lane)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	size := req.BatchSize
	if size == 0 {
		if lc, ok := s.rt.Manager().LaneConfig(p); ok {
			size = lc.BatchSize
		}
	}
	res, err := s.rt.Manager().ProcessBatch(ctx, p, size)
	if err != nil {
		return nil, s.toStatus("process batch", err)
	}
	return reply(res)
}

func (s *pipelineSvc) GetQueueStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.rt.Manager().Status(ctx)
	if err != nil {
		return nil, s.toStatus("status", err)
	}
	return reply(st)
}

func (s *pipelineSvc) ListDeadLetters(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req txqv1.ListDeadLettersRequest
	if err := txqv1.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Limit <= 0 {
		req.Limit = defaultDeadLetterLimit
	}
	n, err := s.rt.DeadLetters().Len(ctx)
	if err != nil {
		return nil, s.toStatus("dead-letter length", err)
	}
	entries, err := s.rt.DeadLetters().List(ctx, req.Limit)
	if err != nil {
		return nil, s.toStatus("list dead letters", err)
	}
	if entries == nil {
		entries = []*lane.Entry{}
	}
	return reply(map[string]any{"length": n, "entries": entries})
}

func (s *pipelineSvc) ReplayDeadLetters(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req txqv1.ReplayDeadLettersRequest
	if err := txqv1.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Target == "" {
		req.Target = lane.Standard.String()
	}
	target, err := lane.Parse(req.Target)
	if err != nil || !target.Enqueueable() {
		return nil, status.Errorf(codes.InvalidArgument, "target must be immediate, high or standard, got %q", req.Target)
	}
	res, err := s.rt.DeadLetters().Replay(ctx, req.IDs, target)
	if err != nil {
		return nil, s.toStatus("replay", err)
	}
	return reply(res)
}

func reply(v any) (*structpb.Struct, error) {
	out, err := txqv1.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps pipeline errors onto gRPC codes and logs the unexpected ones.
func (s *pipelineSvc) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrInvalidPayload),
		errors.Is(err, pipeline.ErrInvalidPriority),
		errors.Is(err, pipeline.ErrUnknownLane),
		errors.Is(err, pipeline.ErrLaneNotProcessable),
		errors.Is(err, pipeline.ErrInvalidBatchSize):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, pipeline.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(op+" failed", log.Err(err))
	return status.Error(codes.Internal, err.Error())
}
