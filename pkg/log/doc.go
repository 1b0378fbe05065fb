// Package log is txq's structured logger.
//
// Components receive a Logger through their constructors and attach typed
// fields (Str, Int, Dur, Err, Component). Lines flow through a log/slog
// handler into a Formatter (JSONFormatter or TextFormatter) and one or more
// Outputs. Redaction and per-message sampling are pipeline options.
//
//	l, err := log.ApplyConfig(&log.Config{Level: "info", Format: "json", RedactKeys: []string{"payload"}})
//	if err != nil { /* handle */ }
//	l = l.WithComponent("pipeline")
//	l.Info("batch processed", log.Str("lane", "high"), log.Int("processed", 12))
//
// RedirectStdLog sends the standard library's global logger, used by some
// dependencies, through the same pipeline.
package log
