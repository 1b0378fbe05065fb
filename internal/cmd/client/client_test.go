package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	txqv1 "github.com/rzbill/txq/api/txq/v1"
)

type pipelineStub struct {
	txqv1.UnimplementedPipelineServiceServer
	mu   sync.Mutex
	last map[string]any
}

func (s *pipelineStub) record(in *structpb.Struct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = in.AsMap()
}

func (s *pipelineStub) lastRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *pipelineStub) Enqueue(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.record(in)
	if in.GetFields()["priority"].GetStringValue() == "retry" {
		return nil, status.Error(codes.InvalidArgument, "invalid priority")
	}
	return structpb.NewStruct(map[string]any{"entry_id": "e-1", "lane": "high"})
}

func (s *pipelineStub) ProcessBatch(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.record(in)
	return structpb.NewStruct(map[string]any{"processed": 2, "failed": 0, "batch_size": 2})
}

func (s *pipelineStub) GetQueueStatus(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.record(in)
	return structpb.NewStruct(map[string]any{"queues": map[string]any{"high": map[string]any{"length": 3, "status": "healthy"}}})
}

func (s *pipelineStub) ListDeadLetters(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.record(in)
	return structpb.NewStruct(map[string]any{"length": 0, "entries": []any{}})
}

func (s *pipelineStub) ReplayDeadLetters(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.record(in)
	return structpb.NewStruct(map[string]any{"replayed": []any{"e-1"}})
}

func startGRPCStub(t *testing.T, svc txqv1.PipelineServiceServer) (addr string, stop func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := grpc.NewServer()
	txqv1.RegisterPipelineServiceServer(gs, svc)
	done := make(chan struct{})
	go func() {
		_ = gs.Serve(l)
		close(done)
	}()
	stop = func() {
		gs.GracefulStop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			gs.Stop()
		}
	}
	return l.Addr().String(), stop
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestEnqueueGRPC_SendsPayload(t *testing.T) {
	stub := &pipelineStub{}
	addr, stop := startGRPCStub(t, stub)
	defer stop()
	t.Setenv("TXQ_GRPC", addr)

	out, err := run(t, "queue", "enqueue", "--priority", "high", "--sla", "2", "--data", `{"transaction_id":"T1","amount":500}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if resp["entry_id"] != "e-1" {
		t.Fatalf("unexpected output: %s", out)
	}
	req := stub.lastRequest()
	if req["priority"] != "high" || req["sla_target"] != 2.0 {
		t.Fatalf("unexpected request: %v", req)
	}
	payload, _ := req["payload"].(map[string]any)
	if payload["transaction_id"] != "T1" || payload["amount"] != 500.0 {
		t.Fatalf("unexpected payload: %v", req["payload"])
	}
}

func TestEnqueueGRPC_ServerRejection(t *testing.T) {
	stub := &pipelineStub{}
	addr, stop := startGRPCStub(t, stub)
	defer stop()
	t.Setenv("TXQ_GRPC", addr)

	if _, err := run(t, "queue", "enqueue", "--priority", "retry", "--data", `{"a":1}`); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestEnqueue_FlagValidation(t *testing.T) {
	t.Setenv("TXQ_GRPC", "127.0.0.1:1")
	for _, args := range [][]string{
		{"queue", "enqueue"},
		{"queue", "enqueue", "--data", "{not json"},
		{"queue", "enqueue", "--data", `{"a":1}`, "--file", "x.json"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestProcessAndStatusGRPC(t *testing.T) {
	stub := &pipelineStub{}
	addr, stop := startGRPCStub(t, stub)
	defer stop()
	t.Setenv("TXQ_GRPC", addr)

	out, err := run(t, "queue", "process", "--lane", "retry", "--batch-size", "2")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"processed": 2`) {
		t.Fatalf("unexpected output: %s", out)
	}
	if req := stub.lastRequest(); req["lane"] != "retry" || req["batch_size"] != 2.0 {
		t.Fatalf("unexpected request: %v", req)
	}

	out, err = run(t, "queue", "status")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"healthy"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestDeadLetterCommandsGRPC(t *testing.T) {
	stub := &pipelineStub{}
	addr, stop := startGRPCStub(t, stub)
	defer stop()
	t.Setenv("TXQ_GRPC", addr)

	if _, err := run(t, "dlq", "list", "--limit", "5"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if req := stub.lastRequest(); req["limit"] != 5.0 {
		t.Fatalf("unexpected request: %v", req)
	}

	if _, err := run(t, "dlq", "replay"); err == nil {
		t.Fatalf("replay without --id or --all should fail")
	}
	if _, err := run(t, "dlq", "replay", "--all", "--id", "x"); err == nil {
		t.Fatalf("replay with both --id and --all should fail")
	}

	out, err := run(t, "dlq", "replay", "--id", "e-1", "--target", "high")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out, "e-1") {
		t.Fatalf("unexpected output: %s", out)
	}
	req := stub.lastRequest()
	ids, _ := req["ids"].([]any)
	if len(ids) != 1 || ids[0] != "e-1" || req["target"] != "high" {
		t.Fatalf("unexpected request: %v", req)
	}
}
