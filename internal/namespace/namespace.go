// Package namespace validates namespace names and records per-namespace
// metadata in the embedded store.
package namespace

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
)

// Meta holds namespace metadata.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	EntryTTLSeconds int    `json:"entryTTLSeconds"`
}

var (
	nsMetaPrefix = []byte("nsmeta/")
)

// nsMetaKey builds metadata key for a namespace.
func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// ValidateName checks name against pattern, anchored at both ends.
func ValidateName(name, pattern string) error {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("namespace: bad name pattern: %w", err)
	}
	if !re.MatchString(name) {
		return fmt.Errorf("namespace: %q does not match %q", name, pattern)
	}
	return nil
}

// EnsureNamespace creates a namespace meta record if absent, returning the effective meta.
// Idempotent: returns existing if already present. A changed TTL is recorded
// without touching the creation time.
func EnsureNamespace(db *pebblestore.DB, name string, ttl time.Duration) (Meta, error) {
	key := nsMetaKey(name)
	ttlSeconds := int(ttl / time.Second)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			if m.EntryTTLSeconds == ttlSeconds {
				return m, nil
			}
			m.EntryTTLSeconds = ttlSeconds
			return m, put(db, key, m)
		}
		// fallthrough to rewrite if corrupted
	} else if err != nil && !pebblestore.IsNotFound(err) {
		return Meta{}, err
	}
	m := Meta{Name: name, CreatedAtMs: time.Now().UnixMilli(), EntryTTLSeconds: ttlSeconds}
	return m, put(db, key, m)
}

func put(db *pebblestore.DB, key []byte, m Meta) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return db.Set(key, b)
}
