// Package pebblestore owns the Pebble handle behind the durable lanes.
//
// It applies the configured fsync policy to every commit and reports
// read, write and commit latencies to an optional MetricsHook. Callers
// build their own key layouts on top of Get, Set, NewIter and batches.
//
//	mode, _ := pebblestore.ParseFsyncMode("always")
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: "./data/store", Fsync: mode})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set(key, value, nil)
//	_ = db.CommitBatch(ctx, b)
//	b.Close()
package pebblestore
