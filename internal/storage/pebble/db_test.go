package pebblestore

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
)

type countingHook struct {
	writes, reads     int
	commits, commitOp int
}

func (h *countingHook) ObserveWrite(time.Duration, int) { h.writes++ }
func (h *countingHook) ObserveRead(time.Duration, int)  { h.reads++ }
func (h *countingHook) ObserveBatchCommit(_ time.Duration, ops int, _ int) {
	h.commits++
	h.commitOp += ops
}

func openDB(t *testing.T, mode FsyncMode) (*DB, *countingHook) {
	t.Helper()
	hook := &countingHook{}
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: mode, FsyncInterval: time.Millisecond, Metrics: hook})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, hook
}

func TestParseFsyncMode(t *testing.T) {
	for in, want := range map[string]FsyncMode{"always": FsyncModeAlways, " Interval": FsyncModeInterval, "NEVER": FsyncModeNever} {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q) = %v, %v", in, got, err)
		}
		if got.String() != fsyncNames[want] {
			t.Fatalf("String() = %s", got)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if FsyncModeUnspecified.String() != "unspecified" {
		t.Fatalf("zero mode string")
	}
}

func TestOpenRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSetGetEachMode(t *testing.T) {
	for _, mode := range []FsyncMode{FsyncModeUnspecified, FsyncModeAlways, FsyncModeInterval, FsyncModeNever} {
		t.Run(mode.String(), func(t *testing.T) {
			db, hook := openDB(t, mode)
			if err := db.Set([]byte("k"), []byte("v")); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := db.Get([]byte("k"))
			if err != nil || string(got) != "v" {
				t.Fatalf("get = %q, %v", got, err)
			}
			if _, err := db.Get([]byte("missing")); !IsNotFound(err) {
				t.Fatalf("expected not found, got %v", err)
			}
			if hook.writes != 1 || hook.reads != 1 || hook.commits != 1 {
				t.Fatalf("hook counts: %+v", hook)
			}
		})
	}
}

func TestCommitBatchHonorsCancelledContext(t *testing.T) {
	db, hook := openDB(t, FsyncModeNever)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("k"), []byte("v"), nil)
	if err := db.CommitBatch(ctx, b); err == nil {
		t.Fatalf("expected context error")
	}
	if _, err := db.Get([]byte("k")); !IsNotFound(err) {
		t.Fatalf("cancelled batch must not be applied: %v", err)
	}
	if hook.commits != 0 {
		t.Fatalf("cancelled commit should not be observed")
	}
	if err := db.CommitBatch(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil batch")
	}
}

func TestBatchIsAtomicAndOrdered(t *testing.T) {
	db, hook := openDB(t, FsyncModeAlways)

	b := db.NewBatch()
	for _, k := range []string{"lane/b", "lane/a", "lane/c", "other"} {
		if err := b.Set([]byte(k), []byte("1"), nil); err != nil {
			t.Fatalf("batch set: %v", err)
		}
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()
	if hook.commitOp != 4 {
		t.Fatalf("ops observed = %d", hook.commitOp)
	}

	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: []byte("lane/"), UpperBound: []byte("lane/\xff")})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	defer iter.Close()
	var keys []string
	for ok := iter.First(); ok; ok = iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if len(keys) != 3 || keys[0] != "lane/a" || keys[2] != "lane/c" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestCloseNil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
