package namespace

import (
	"testing"
	"time"

	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
)

func openDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureNamespaceIdempotent(t *testing.T) {
	db := openDB(t)
	m1, err := EnsureNamespace(db, "default", time.Hour)
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := EnsureNamespace(db, "default", time.Hour)
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m1.Name != m2.Name || m1.CreatedAtMs != m2.CreatedAtMs {
		t.Fatalf("not idempotent: %+v vs %+v", m1, m2)
	}
	if m2.EntryTTLSeconds != 3600 {
		t.Fatalf("ttl = %d", m2.EntryTTLSeconds)
	}
}

func TestEnsureNamespaceRecordsTTLChange(t *testing.T) {
	db := openDB(t)
	m1, err := EnsureNamespace(db, "billing", time.Hour)
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := EnsureNamespace(db, "billing", 2*time.Hour)
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m2.CreatedAtMs != m1.CreatedAtMs || m2.EntryTTLSeconds != 7200 {
		t.Fatalf("unexpected meta %+v", m2)
	}
	m3, err := EnsureNamespace(db, "billing", 2*time.Hour)
	if err != nil || m3.EntryTTLSeconds != 7200 {
		t.Fatalf("ttl change not persisted: %+v %v", m3, err)
	}
}

func TestValidateName(t *testing.T) {
	const pattern = "[a-z0-9-_]{1,64}"
	for _, ok := range []string{"default", "billing-ng", "a_1"} {
		if err := ValidateName(ok, pattern); err != nil {
			t.Fatalf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "Upper", "has space", "x/y"} {
		if err := ValidateName(bad, pattern); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
	if err := ValidateName("x", "[a-"); err == nil {
		t.Fatalf("bad pattern should error")
	}
}
