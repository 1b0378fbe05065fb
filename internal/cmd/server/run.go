package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/txq/internal/config"
	"github.com/rzbill/txq/internal/runtime"
	grpcserver "github.com/rzbill/txq/internal/server/grpc"
	httpserver "github.com/rzbill/txq/internal/server/http"
	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
	"github.com/rzbill/txq/internal/worker"
	logpkg "github.com/rzbill/txq/pkg/log"
)

type Options struct {
	DataDir  string
	GRPCAddr string
	HTTPAddr string
	Fsync    pebblestore.FsyncMode
	Config   cfgpkg.Config
	// DisableWorkers leaves lanes to be drained through ProcessBatch calls only.
	DisableWorkers bool
}

// Run starts the batch workers and both servers and blocks until ctx is
// cancelled or one of them fails.
func Run(ctx context.Context, opts Options) error {
	// layer a local signal context so callers without one still stop cleanly
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger := buildLogger(opts.Config.Log)
	// Pebble logs through the stdlib logger
	logpkg.RedirectStdLog(procLogger)

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: opts.Fsync, Config: opts.Config, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config()
	procLogger.Info("Starting txq server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("namespace", cfg.Namespace),
		logpkg.Str("store", cfg.Store.Backend),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
		logpkg.Bool("workers", !opts.DisableWorkers),
	)

	var pool *worker.Pool
	if !opts.DisableWorkers {
		pool, err = worker.NewPool(rt.Manager(), rt.Schedules(), procLogger)
		if err != nil {
			return err
		}
	}
	if sw := rt.Sweeper(); sw != nil {
		sw.Start()
	}

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt, procLogger)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return gsrv.ListenAndServe(gctx, opts.GRPCAddr) })
	g.Go(func() error { return hsrv.ListenAndServe(gctx, opts.HTTPAddr) })
	if pool != nil {
		g.Go(func() error { return pool.Run(gctx) })
	}
	err = g.Wait()
	if err != nil && sctx.Err() == nil {
		procLogger.Error("server stopped", logpkg.Err(err))
	}

	// stop the servers before the runtime closes the store underneath them
	gsrv.Close()
	hsrv.Close()
	if sctx.Err() != nil {
		return nil
	}
	return err
}

func buildLogger(c cfgpkg.LogConfig) logpkg.Logger {
	lc := &logpkg.Config{
		Level:            c.Level,
		Format:           c.Format,
		Outputs:          c.Outputs,
		RedactKeys:       c.RedactKeys,
		SampleInitial:    c.SampleInitial,
		SampleThereafter: c.SampleThereafter,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "text"
	}
	l, err := logpkg.ApplyConfig(lc)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, perr := logpkg.ParseLevel(lc.Level); perr == nil {
		lvl = parsed
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}
