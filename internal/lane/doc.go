// Package lane holds the queue entry model and the durable, TTL-bounded lane
// stores that back the delivery pipeline.
//
// A lane is a FIFO list named by a Priority. Entries are appended to the tail
// and popped from the head; a pop transfers ownership of the entry to exactly
// one caller. Every push refreshes the lane's time-to-live, so a lane that sees
// no writes for the configured TTL (24h by default) is dropped as a whole.
//
// Two backends implement Store:
//
//   - PebbleStore keeps lanes in the local Pebble database under
//     ns/{ns}/lane/{lane}/..., ordering entries by a sortable id.ID.
//   - RedisStore keeps one Redis list per lane and relies on EXPIRE.
//
// Keyspace (Pebble):
//
//	ns/{ns}/lane/{lane}/q/{seq16}     -> CRC-framed entry record
//	ns/{ns}/lane/{lane}/idx/{entryID} -> seq16
//	ns/{ns}/lane/{lane}/meta          -> count(8B) | expires_ms(8B)
//	ns/{ns}/done/{entryID}            -> expires_ms(8B)
package lane
