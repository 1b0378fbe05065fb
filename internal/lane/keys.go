package lane

import (
	"encoding/binary"
	"fmt"

	"github.com/rzbill/txq/pkg/id"
)

const (
	prefixQueue = "q/"
	prefixIndex = "idx/"
	suffixMeta  = "meta"
)

// lanePrefix returns ns/{ns}/lane/{lane}/.
func lanePrefix(namespace string, p Priority) []byte {
	return []byte(fmt.Sprintf("ns/%s/lane/%s/", namespace, p))
}

// EntryPrefix returns ns/{ns}/lane/{lane}/q/.
func EntryPrefix(namespace string, p Priority) []byte {
	return append(lanePrefix(namespace, p), prefixQueue...)
}

// EntryKey returns ns/{ns}/lane/{lane}/q/{seq16}.
func EntryKey(namespace string, p Priority, seq id.ID) []byte {
	prefix := EntryPrefix(namespace, p)
	key := make([]byte, len(prefix)+len(seq))
	copy(key, prefix)
	copy(key[len(prefix):], seq[:])
	return key
}

// IndexKey returns ns/{ns}/lane/{lane}/idx/{entryID}.
func IndexKey(namespace string, p Priority, entryID string) []byte {
	return append(append(lanePrefix(namespace, p), prefixIndex...), entryID...)
}

// MetaKey returns ns/{ns}/lane/{lane}/meta.
func MetaKey(namespace string, p Priority) []byte {
	return append(lanePrefix(namespace, p), suffixMeta...)
}

// DonePrefix returns ns/{ns}/done/.
func DonePrefix(namespace string) []byte {
	return []byte(fmt.Sprintf("ns/%s/done/", namespace))
}

// DoneKey returns ns/{ns}/done/{entryID}.
func DoneKey(namespace, entryID string) []byte {
	return append(DonePrefix(namespace), entryID...)
}

// keyRange returns iteration bounds covering every key under prefix.
func keyRange(prefix []byte) (lo, hi []byte) {
	return prefix, append(append([]byte{}, prefix...), 0xFF)
}

// seqFromEntryKey extracts the trailing sortable id of an entry key.
func seqFromEntryKey(key []byte) (id.ID, bool) {
	if len(key) < 16 {
		return id.ID{}, false
	}
	return id.FromBytes(key[len(key)-16:])
}

// laneMeta is count(8B BE) | expires_ms(8B BE). expires_ms 0 means no expiry.
type laneMeta struct {
	count     uint64
	expiresMs int64
}

func (m laneMeta) encode() []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], m.count)
	binary.BigEndian.PutUint64(b[8:16], uint64(m.expiresMs))
	return b[:]
}

func decodeMeta(b []byte) laneMeta {
	if len(b) < 16 {
		return laneMeta{}
	}
	return laneMeta{
		count:     binary.BigEndian.Uint64(b[0:8]),
		expiresMs: int64(binary.BigEndian.Uint64(b[8:16])),
	}
}

func (m laneMeta) expired(nowMs int64) bool {
	return m.expiresMs > 0 && nowMs >= m.expiresMs
}
