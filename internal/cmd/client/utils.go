package client

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rzbill/txq/internal/cmd/client/transports"
)

// grpcAddrFromEnv returns the gRPC server address from TXQ_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("TXQ_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext dials the txq gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func newTransport() transports.PipelineTransport {
	return transports.NewGrpcTransport(dialGRPCContext)
}

// printJSON writes v indented, one document per call.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
