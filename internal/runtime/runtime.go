package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/rzbill/txq/internal/breaker"
	"github.com/rzbill/txq/internal/classify"
	cfgpkg "github.com/rzbill/txq/internal/config"
	"github.com/rzbill/txq/internal/deadletter"
	"github.com/rzbill/txq/internal/eventlog"
	"github.com/rzbill/txq/internal/executor"
	"github.com/rzbill/txq/internal/lane"
	"github.com/rzbill/txq/internal/metrics"
	"github.com/rzbill/txq/internal/namespace"
	"github.com/rzbill/txq/internal/pipeline"
	"github.com/rzbill/txq/internal/retry"
	pebblestore "github.com/rzbill/txq/internal/storage/pebble"
	"github.com/rzbill/txq/internal/worker"
	"github.com/rzbill/txq/pkg/log"
)

// BreakerName names the breaker guarding the downstream executor.
const BreakerName = "downstream"

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  log.Logger
	// Registry receives every collector; nil creates a private registry with
	// the Go and process collectors.
	Registry *prometheus.Registry
	// Executor overrides the executor built from Config.Executor.
	Executor executor.Executor
	// RedisClient overrides dialing Config.Store.RedisAddr.
	RedisClient redis.UniversalClient
	Now         func() time.Time
}

// Runtime wires storage, config, and the pipeline for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	redis    redis.UniversalClient
	ownRedis bool
	config   cfgpkg.Config
	logger   log.Logger
	registry *prometheus.Registry

	store     lane.Store
	breaker   *breaker.Breaker
	monitor   *metrics.Monitor
	dlq       *deadletter.Handler
	scheduler *retry.Scheduler
	manager   *pipeline.Manager
	sweeper   *lane.Sweeper
	events    *eventlog.Log
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("runtime: config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	rt := &Runtime{config: cfg, logger: opts.Logger.With(log.Component("runtime")), registry: reg}

	if err := rt.openStore(opts); err != nil {
		_ = rt.Close()
		return nil, err
	}
	if err := rt.build(opts); err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.logger.Info("runtime opened",
		log.Str("namespace", cfg.Namespace),
		log.Str("backend", cfg.Store.Backend),
		log.Dur("entry_ttl", cfg.EntryTTL()),
	)
	return rt, nil
}

func (r *Runtime) openStore(opts Options) error {
	cfg := r.config
	if err := namespace.ValidateName(cfg.Namespace, cfg.NamespaceNameRegex); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Store.Backend) {
	case "redis":
		client := opts.RedisClient
		if client == nil {
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.Store.RedisAddr,
				DB:       cfg.Store.RedisDB,
				Password: cfg.Store.RedisPassword,
			})
			r.ownRedis = true
		}
		r.redis = client
		r.store = lane.NewRedisStore(client, lane.RedisOptions{
			Prefix:    cfg.Store.RedisPrefix,
			Namespace: cfg.Namespace,
			TTL:       cfg.EntryTTL(),
			Logger:    opts.Logger,
		})
		return nil
	default:
		hook, err := metrics.NewStorageHook(r.registry)
		if err != nil {
			return err
		}
		db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, Metrics: hook})
		if err != nil {
			return err
		}
		r.db = db
		if _, err := namespace.EnsureNamespace(db, cfg.Namespace, cfg.EntryTTL()); err != nil {
			return err
		}
		store, err := lane.NewPebbleStore(db, lane.PebbleOptions{
			Namespace: cfg.Namespace,
			TTL:       cfg.EntryTTL(),
			Now:       opts.Now,
			Logger:    opts.Logger,
		})
		if err != nil {
			return err
		}
		r.store = store
		r.events, err = eventlog.Open(db, eventlog.Options{
			Namespace: cfg.Namespace,
			Retention: cfg.EntryTTL(),
			Now:       opts.Now,
		})
		return err
	}
}

func (r *Runtime) build(opts Options) error {
	cfg := r.config
	mon, err := metrics.NewMonitor(metrics.Options{
		WindowSize:   cfg.Metrics.WindowSize,
		RecentErrors: cfg.Metrics.RecentErrors,
		Registerer:   r.registry,
	})
	if err != nil {
		return err
	}
	r.monitor = mon

	r.breaker = breaker.New(BreakerName, breaker.Options{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout(),
		Now:              opts.Now,
		Logger:           opts.Logger,
		OnStateChange: func(name string, _, to breaker.State) {
			mon.SetBreakerState(name, int(to))
		},
	})
	mon.SetBreakerState(BreakerName, int(breaker.Closed))

	cls, err := classify.New(classifierOptions(cfg.Classifier))
	if err != nil {
		return err
	}

	r.dlq = deadletter.New(r.store, deadletter.Options{
		Now:      opts.Now,
		Logger:   opts.Logger,
		OnMove:   r.journalMove,
		OnReplay: r.journalReplay,
	})

	policies, err := RetryPolicies(cfg)
	if err != nil {
		return err
	}
	r.scheduler = retry.NewScheduler(r.store, r.dlq, retry.SchedulerOptions{Policies: policies, Now: opts.Now, Logger: opts.Logger})

	exec := opts.Executor
	if exec == nil {
		if exec, err = buildExecutor(cfg.Executor); err != nil {
			return err
		}
	}

	pcfg, err := PipelineConfig(cfg)
	if err != nil {
		return err
	}
	pcfg.Now = opts.Now
	r.manager, err = pipeline.NewManager(pipeline.Deps{
		Store:       r.store,
		Executor:    exec,
		Breaker:     r.breaker,
		Classifier:  cls,
		Scheduler:   r.scheduler,
		DeadLetters: r.dlq,
		Monitor:     mon,
		Events:      r.eventRecorder(),
		Logger:      opts.Logger,
	}, pcfg)
	if err != nil {
		return err
	}

	var purge purgers
	if p, ok := r.store.(lane.Purger); ok {
		purge = append(purge, p)
	}
	if r.events != nil {
		purge = append(purge, r.events)
	}
	if len(purge) > 0 {
		r.sweeper = lane.NewSweeper(purge, cfg.PurgeInterval(), opts.Logger)
	}
	return nil
}

// purgers fans one sweep out to every expiring keyspace.
type purgers []lane.Purger

func (ps purgers) PurgeExpired(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, p := range ps {
		n, err := p.PurgeExpired(ctx)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// eventRecorder avoids handing the manager a typed nil.
func (r *Runtime) eventRecorder() pipeline.EventRecorder {
	if r.events == nil {
		return nil
	}
	return r.events
}

func (r *Runtime) journalMove(e *lane.Entry, reason string) {
	r.journal(eventlog.Event{
		EntryID: e.ID, Type: eventlog.DeadLettered, Lane: e.Priority.String(),
		Attempts: e.Attempts, Error: reason, FailureClass: e.FailureClass,
	})
}

func (r *Runtime) journalReplay(e *lane.Entry) {
	r.journal(eventlog.Event{EntryID: e.ID, Type: eventlog.Replayed, Lane: e.Priority.String()})
}

func (r *Runtime) journal(ev eventlog.Event) {
	if r.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.events.Append(ctx, ev); err != nil {
		r.logger.Warn("event not journaled", log.Str("entry_id", ev.EntryID), log.Str("type", string(ev.Type)), log.Err(err))
	}
}

func classifierOptions(c cfgpkg.ClassifierConfig) classify.Options {
	opts := classify.DefaultOptions()
	if len(c.PermanentStatusCodes) > 0 {
		opts.PermanentStatusCodes = c.PermanentStatusCodes
	}
	if len(c.PermanentKeywords) > 0 {
		opts.PermanentKeywords = c.PermanentKeywords
	}
	opts.PermanentRules = c.PermanentRules
	return opts
}

func buildExecutor(c cfgpkg.ExecutorConfig) (executor.Executor, error) {
	if c.URL == "" {
		return executor.Accept{}, nil
	}
	return executor.NewHTTP(executor.HTTPOptions{URL: c.URL, Timeout: c.Timeout(), Headers: c.Headers})
}

// RetryPolicies converts the lane settings into retry policies.
func RetryPolicies(cfg cfgpkg.Config) (map[lane.Priority]retry.Policy, error) {
	out := make(map[lane.Priority]retry.Policy, len(cfg.Lanes))
	for name, l := range cfg.Lanes {
		p, err := lane.Parse(name)
		if err != nil {
			return nil, err
		}
		pol := retry.Policy{MaxAttempts: l.MaxAttempts, BaseDelay: l.BaseDelay(), BackoffFactor: l.BackoffFactor, MaxDelay: l.MaxDelay()}
		if err := pol.Validate(); err != nil {
			return nil, fmt.Errorf("lane %s: %w", name, err)
		}
		out[p] = pol
	}
	return out, nil
}

// PipelineConfig converts cfg into the manager configuration.
func PipelineConfig(cfg cfgpkg.Config) (pipeline.Config, error) {
	fields := make([]pipeline.FieldRule, 0, len(cfg.Payload.RequiredFields))
	for _, f := range cfg.Payload.RequiredFields {
		fields = append(fields, pipeline.FieldRule{Name: f.Name, Kind: f.Kind})
	}
	validator, err := pipeline.NewSchemaValidator(fields, cfg.Payload.Rule)
	if err != nil {
		return pipeline.Config{}, err
	}
	lanes := make(map[lane.Priority]pipeline.LaneConfig, len(cfg.Lanes))
	for name, l := range cfg.Lanes {
		p, err := lane.Parse(name)
		if err != nil {
			return pipeline.Config{}, err
		}
		lanes[p] = pipeline.LaneConfig{SLATarget: l.SLATarget(), Timeout: l.Timeout(), BatchSize: l.BatchSize}
	}
	return pipeline.Config{
		Lanes:  lanes,
		Health: pipeline.HealthThresholds{Warning: cfg.Health.WarningThreshold, Critical: cfg.Health.CriticalThreshold},
		Inline: pipeline.InlineOptions{
			Disabled:      cfg.Inline.Disabled,
			Timeout:       cfg.Inline.Timeout(),
			MaxConcurrent: int64(cfg.Inline.MaxConcurrent),
		},
		Validator: validator,
	}, nil
}

// Schedules returns one sweep schedule per configured lane.
func (r *Runtime) Schedules() []worker.LaneSchedule {
	out := make([]worker.LaneSchedule, 0, len(r.config.Lanes))
	for _, p := range lane.All {
		l, ok := r.config.Lanes[p.String()]
		if !ok {
			continue
		}
		out = append(out, worker.LaneSchedule{Lane: p, Interval: l.SweepInterval(), BatchSize: l.BatchSize, Workers: l.Workers})
	}
	return out
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	var errs []error
	if r.manager != nil {
		errs = append(errs, r.manager.Close())
	}
	if r.sweeper != nil {
		r.sweeper.Stop()
	}
	if r.redis != nil {
		if r.ownRedis {
			errs = append(errs, r.redis.Close())
		}
		r.redis = nil
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

// CheckHealth verifies the lane store is reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.redis != nil {
		return r.redis.Ping(ctx).Err()
	}
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// DB exposes the embedded store; nil for the redis backend.
func (r *Runtime) DB() *pebblestore.DB { return r.db }

func (r *Runtime) Config() cfgpkg.Config            { return r.config }
func (r *Runtime) Logger() log.Logger               { return r.logger }
func (r *Runtime) Registry() *prometheus.Registry   { return r.registry }
func (r *Runtime) Store() lane.Store                { return r.store }
func (r *Runtime) Manager() *pipeline.Manager       { return r.manager }
func (r *Runtime) DeadLetters() *deadletter.Handler { return r.dlq }
func (r *Runtime) Breaker() *breaker.Breaker        { return r.breaker }
func (r *Runtime) Monitor() *metrics.Monitor        { return r.monitor }
func (r *Runtime) Sweeper() *lane.Sweeper           { return r.sweeper }

// Events exposes the transition journal; nil for the redis backend.
func (r *Runtime) Events() *eventlog.Log { return r.events }
