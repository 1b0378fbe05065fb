package txqv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "txq.v1.PipelineService"

const (
	PipelineService_Enqueue_FullMethodName           = "/txq.v1.PipelineService/Enqueue"
	PipelineService_ProcessBatch_FullMethodName      = "/txq.v1.PipelineService/ProcessBatch"
	PipelineService_GetQueueStatus_FullMethodName    = "/txq.v1.PipelineService/GetQueueStatus"
	PipelineService_ListDeadLetters_FullMethodName   = "/txq.v1.PipelineService/ListDeadLetters"
	PipelineService_ReplayDeadLetters_FullMethodName = "/txq.v1.PipelineService/ReplayDeadLetters"
)

// PipelineServiceClient is the client API for PipelineService.
type PipelineServiceClient interface {
	Enqueue(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ProcessBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetQueueStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListDeadLetters(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ReplayDeadLetters(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type pipelineServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPipelineServiceClient(cc grpc.ClientConnInterface) PipelineServiceClient {
	return &pipelineServiceClient{cc}
}

func (c *pipelineServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pipelineServiceClient) Enqueue(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PipelineService_Enqueue_FullMethodName, in, opts)
}

func (c *pipelineServiceClient) ProcessBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PipelineService_ProcessBatch_FullMethodName, in, opts)
}

func (c *pipelineServiceClient) GetQueueStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PipelineService_GetQueueStatus_FullMethodName, in, opts)
}

func (c *pipelineServiceClient) ListDeadLetters(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PipelineService_ListDeadLetters_FullMethodName, in, opts)
}

func (c *pipelineServiceClient) ReplayDeadLetters(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PipelineService_ReplayDeadLetters_FullMethodName, in, opts)
}

// PipelineServiceServer is the server API for PipelineService. Embed
// UnimplementedPipelineServiceServer for forward compatibility.
type PipelineServiceServer interface {
	Enqueue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetQueueStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDeadLetters(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReplayDeadLetters(context.Context, *structpb.Struct) (*structpb.Struct, error)
	mustEmbedUnimplementedPipelineServiceServer()
}

// UnimplementedPipelineServiceServer answers every RPC with Unimplemented.
type UnimplementedPipelineServiceServer struct{}

func (UnimplementedPipelineServiceServer) Enqueue(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Enqueue not implemented")
}
func (UnimplementedPipelineServiceServer) ProcessBatch(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ProcessBatch not implemented")
}
func (UnimplementedPipelineServiceServer) GetQueueStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetQueueStatus not implemented")
}
func (UnimplementedPipelineServiceServer) ListDeadLetters(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListDeadLetters not implemented")
}
func (UnimplementedPipelineServiceServer) ReplayDeadLetters(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReplayDeadLetters not implemented")
}
func (UnimplementedPipelineServiceServer) mustEmbedUnimplementedPipelineServiceServer() {}

func RegisterPipelineServiceServer(s grpc.ServiceRegistrar, srv PipelineServiceServer) {
	s.RegisterService(&PipelineService_ServiceDesc, srv)
}

type unaryFunc func(PipelineServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryFunc) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PipelineServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PipelineServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PipelineService_ServiceDesc is the grpc.ServiceDesc for PipelineService.
var PipelineService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Enqueue",
			Handler:    unaryHandler(PipelineService_Enqueue_FullMethodName, PipelineServiceServer.Enqueue),
		},
		{
			MethodName: "ProcessBatch",
			Handler:    unaryHandler(PipelineService_ProcessBatch_FullMethodName, PipelineServiceServer.ProcessBatch),
		},
		{
			MethodName: "GetQueueStatus",
			Handler:    unaryHandler(PipelineService_GetQueueStatus_FullMethodName, PipelineServiceServer.GetQueueStatus),
		},
		{
			MethodName: "ListDeadLetters",
			Handler:    unaryHandler(PipelineService_ListDeadLetters_FullMethodName, PipelineServiceServer.ListDeadLetters),
		},
		{
			MethodName: "ReplayDeadLetters",
			Handler:    unaryHandler(PipelineService_ReplayDeadLetters_FullMethodName, PipelineServiceServer.ReplayDeadLetters),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "txq/v1/pipeline.proto",
}
