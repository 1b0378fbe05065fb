// Package id generates the sortable sequence ids that key lane entries.
//
// An ID is 16 bytes big-endian, [ms_timestamp][sequence], so bytewise key
// order in Pebble is arrival order. A Generator never goes backwards: a
// regressed clock reuses the last millisecond with a higher sequence, and
// Resume seeds it from the newest persisted key after a restart.
//
//	g := id.NewGenerator(nil)
//	key := append(prefix, g.Next().Bytes()...)
package id
