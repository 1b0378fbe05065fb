package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ns/{ns}/events/m
// - ns/{ns}/events/e/{seq_be8}

var (
	nsPrefix   = []byte("ns/")
	eventsSeg  = []byte("/events/")
	metaSuffix = []byte("m")
	entrySeg   = []byte("e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func logPrefix(namespace string) []byte {
	k := make([]byte, 0, len(namespace)+16)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	return append(k, eventsSeg...)
}

// KeyLogMeta builds the metadata key holding the last assigned sequence.
func KeyLogMeta(namespace string) []byte {
	return append(logPrefix(namespace), metaSuffix...)
}

// KeyLogEntry builds the event key with a big-endian sequence for proper ordering.
func KeyLogEntry(namespace string, seq uint64) []byte {
	k := append(logPrefix(namespace), entrySeg...)
	return appendBE8(k, seq)
}

// seqFromKey extracts the trailing sequence of an event key.
func seqFromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
