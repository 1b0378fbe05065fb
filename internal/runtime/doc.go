// Package runtime wires storage, config and the delivery pipeline into a
// single-node txq instance. It exposes Open/Close, a store health check and
// accessors for the components the servers and workers drive.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	receipt, _ := rt.Manager().Enqueue(ctx, payload, lane.High, 0)
//	pool, _ := worker.NewPool(rt.Manager(), rt.Schedules(), logger)
package runtime
