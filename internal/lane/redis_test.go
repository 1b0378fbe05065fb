package lane

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rzbill/txq/pkg/log"
)

// These tests need a live Redis; set TXQ_TEST_REDIS_ADDR to run them.
func openRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TXQ_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TXQ_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return NewRedisStore(client, RedisOptions{Prefix: "txqtest-" + uuid.NewString(), TTL: time.Minute, Logger: log.Nop()})
}

func TestRedisPushPopFIFO(t *testing.T) {
	s := openRedisStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.Push(ctx, testEntry(id, High)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if n, _ := s.Len(ctx, High); n != 2 {
		t.Fatalf("len = %d", n)
	}
	ttl, err := s.client.TTL(ctx, s.laneKey(High)).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("lane ttl not set: %v %v", ttl, err)
	}
	first, _ := s.Pop(ctx, High)
	second, _ := s.Pop(ctx, High)
	if first.ID != "a" || second.ID != "b" {
		t.Fatalf("order: %s %s", first.ID, second.ID)
	}
	if _, err := s.Pop(ctx, High); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestRedisRemoveAndDone(t *testing.T) {
	s := openRedisStore(t)
	ctx := context.Background()
	_ = s.Push(ctx, testEntry("a", DeadLetter))
	_ = s.Push(ctx, testEntry("b", DeadLetter))
	if e, err := s.Remove(ctx, DeadLetter, "a"); err != nil || e.ID != "a" {
		t.Fatalf("remove: %v %v", e, err)
	}
	if _, err := s.Remove(ctx, DeadLetter, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = s.MarkDone(ctx, "b")
	if done, _ := s.IsDone(ctx, "b"); !done {
		t.Fatalf("marker missing")
	}
}

func TestRedisPushFront(t *testing.T) {
	s := openRedisStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.Push(ctx, testEntry(id, Standard)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if err := s.PushFront(ctx, testEntry("z", Standard)); err != nil {
		t.Fatalf("push front: %v", err)
	}
	for _, want := range []string{"z", "a", "b"} {
		e, err := s.Pop(ctx, Standard)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if e.ID != want {
			t.Fatalf("pop = %s, want %s", e.ID, want)
		}
	}
}
