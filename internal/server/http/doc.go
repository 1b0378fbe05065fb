// Package httpserver is the REST gateway for txq: enqueue, batch processing,
// queue status, dead-letter inspection and replay, plus a Prometheus scrape
// endpoint.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, rt.Logger())
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
