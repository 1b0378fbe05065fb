package grpcserver

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
	"github.com/rzbill/txq/internal/breaker"
	"github.com/rzbill/txq/internal/runtime"
)

// healthSvc answers grpc.health.v1 checks from live state. The empty service
// and txq.v1.PipelineService track the store; the breaker's name tracks the
// downstream circuit.
type healthSvc struct {
	healthpb.UnimplementedHealthServer
	rt *runtime.Runtime
}

func (h *healthSvc) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", txqv1.ServiceName:
		if err := h.rt.CheckHealth(ctx); err != nil {
			return serving(false), nil
		}
		return serving(true), nil
	case runtime.BreakerName:
		return serving(h.rt.Breaker().State() != breaker.Open), nil
	}
	return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
}

func serving(ok bool) *healthpb.HealthCheckResponse {
	if ok {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
