package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
	"github.com/rzbill/txq/internal/runtime"
	"github.com/rzbill/txq/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	lis    net.Listener
	logger log.Logger
}

// New constructs a gRPC server and registers services.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	logger := rt.Logger().WithComponent("grpc")
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), logger: logger}
	healthpb.RegisterHealthServer(s.grpc, &healthSvc{rt: rt})
	txqv1.RegisterPipelineServiceServer(s.grpc, &pipelineSvc{rt: rt, logger: logger})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("grpc listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
