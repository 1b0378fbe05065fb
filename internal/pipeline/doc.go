// Package pipeline is the priority queue manager: it accepts submissions into
// lanes, drains lanes in batches through the circuit breaker and routes each
// failure to the retry or dead-letter lane.
//
// Usage:
//
//	m, err := pipeline.NewManager(pipeline.Deps{
//		Store:       store,
//		Executor:    exec,
//		Breaker:     br,
//		Classifier:  cls,
//		Scheduler:   sched,
//		DeadLetters: dlq,
//		Monitor:     mon,
//	}, pipeline.DefaultConfig())
//	receipt, err := m.Enqueue(ctx, payload, lane.High, 2*time.Second)
//	res, err := m.ProcessBatch(ctx, lane.High, 25)
//	status, err := m.Status(ctx)
//
// Executor errors never leave ProcessBatch; they are classified and recorded.
// Only structural problems (unknown lane, bad batch size, store failures) are
// returned as errors.
package pipeline
