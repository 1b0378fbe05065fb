package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Namespace            string                `json:"namespace" yaml:"namespace"`
	NamespaceNameRegex   string                `json:"namespaceNameRegex" yaml:"namespaceNameRegex"`
	EntryTTLSeconds      int                   `json:"entryTTLSeconds" yaml:"entryTTLSeconds"`
	PurgeIntervalSeconds int                   `json:"purgeIntervalSeconds" yaml:"purgeIntervalSeconds"`
	Store                StoreConfig           `json:"store" yaml:"store"`
	Lanes                map[string]LaneConfig `json:"lanes" yaml:"lanes"`
	Breaker              BreakerConfig         `json:"breaker" yaml:"breaker"`
	Health               HealthConfig          `json:"health" yaml:"health"`
	Classifier           ClassifierConfig      `json:"classifier" yaml:"classifier"`
	Payload              PayloadConfig         `json:"payload" yaml:"payload"`
	Inline               InlineConfig          `json:"inline" yaml:"inline"`
	Metrics              MetricsConfig         `json:"metrics" yaml:"metrics"`
	Executor             ExecutorConfig        `json:"executor" yaml:"executor"`
	Log                  LogConfig             `json:"log" yaml:"log"`
}

// StoreConfig selects the lane backend.
type StoreConfig struct {
	// Backend is "pebble" (embedded, default) or "redis".
	Backend       string `json:"backend" yaml:"backend"`
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisDB       int    `json:"redisDB" yaml:"redisDB"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisPrefix   string `json:"redisPrefix" yaml:"redisPrefix"`
}

// LaneConfig is the budget of one lane. Zero fields take the lane default.
type LaneConfig struct {
	MaxAttempts          int     `json:"maxAttempts" yaml:"maxAttempts"`
	BaseDelaySeconds     float64 `json:"baseDelaySeconds" yaml:"baseDelaySeconds"`
	BackoffFactor        float64 `json:"backoffFactor" yaml:"backoffFactor"`
	MaxDelaySeconds      float64 `json:"maxDelaySeconds" yaml:"maxDelaySeconds"`
	SLATargetSeconds     float64 `json:"slaTargetSeconds" yaml:"slaTargetSeconds"`
	TimeoutSeconds       float64 `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	SweepIntervalSeconds float64 `json:"sweepIntervalSeconds" yaml:"sweepIntervalSeconds"`
	BatchSize            int     `json:"batchSize" yaml:"batchSize"`
	Workers              int     `json:"workers" yaml:"workers"`
}

func (l LaneConfig) BaseDelay() time.Duration     { return seconds(l.BaseDelaySeconds) }
func (l LaneConfig) MaxDelay() time.Duration      { return seconds(l.MaxDelaySeconds) }
func (l LaneConfig) SLATarget() time.Duration     { return seconds(l.SLATargetSeconds) }
func (l LaneConfig) Timeout() time.Duration       { return seconds(l.TimeoutSeconds) }
func (l LaneConfig) SweepInterval() time.Duration { return seconds(l.SweepIntervalSeconds) }

// BreakerConfig configures the downstream circuit breaker.
type BreakerConfig struct {
	FailureThreshold       int     `json:"failureThreshold" yaml:"failureThreshold"`
	RecoveryTimeoutSeconds float64 `json:"recoveryTimeoutSeconds" yaml:"recoveryTimeoutSeconds"`
}

func (b BreakerConfig) RecoveryTimeout() time.Duration { return seconds(b.RecoveryTimeoutSeconds) }

// HealthConfig holds the lane-length thresholds for status labels.
type HealthConfig struct {
	WarningThreshold  int `json:"warningThreshold" yaml:"warningThreshold"`
	CriticalThreshold int `json:"criticalThreshold" yaml:"criticalThreshold"`
}

// ClassifierConfig extends the permanent-failure allow-lists. Empty lists
// keep the built-in ones.
type ClassifierConfig struct {
	PermanentStatusCodes []int    `json:"permanentStatusCodes" yaml:"permanentStatusCodes"`
	PermanentKeywords    []string `json:"permanentKeywords" yaml:"permanentKeywords"`
	PermanentRules       []string `json:"permanentRules" yaml:"permanentRules"`
}

// FieldSpec requires a top-level payload field.
type FieldSpec struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
}

// PayloadConfig is the enqueue-time schema.
type PayloadConfig struct {
	RequiredFields []FieldSpec `json:"requiredFields" yaml:"requiredFields"`
	// Rule is an optional CEL expression over `payload` that must hold.
	Rule string `json:"rule" yaml:"rule"`
}

// InlineConfig bounds the best-effort attempt for immediate entries.
type InlineConfig struct {
	Disabled       bool    `json:"disabled" yaml:"disabled"`
	TimeoutSeconds float64 `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	MaxConcurrent  int     `json:"maxConcurrent" yaml:"maxConcurrent"`
}

func (i InlineConfig) Timeout() time.Duration { return seconds(i.TimeoutSeconds) }

// MetricsConfig sizes the in-memory metric windows.
type MetricsConfig struct {
	WindowSize   int `json:"windowSize" yaml:"windowSize"`
	RecentErrors int `json:"recentErrors" yaml:"recentErrors"`
}

// ExecutorConfig points at the downstream submission endpoint. An empty URL
// selects the accept-everything executor.
type ExecutorConfig struct {
	URL            string            `json:"url" yaml:"url"`
	TimeoutSeconds float64           `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
}

func (e ExecutorConfig) Timeout() time.Duration { return seconds(e.TimeoutSeconds) }

// LogConfig selects the log level, format and destinations.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// Outputs are "console", "null" or file paths; empty means console.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	// RedactKeys masks field values, e.g. transaction payloads.
	RedactKeys       []string `json:"redactKeys,omitempty" yaml:"redactKeys,omitempty"`
	SampleInitial    int      `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty"`
	SampleThereafter int      `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty"`
}

// DefaultLanes returns the built-in lane budgets keyed by lane name.
func DefaultLanes() map[string]LaneConfig {
	retry := LaneConfig{MaxAttempts: 3, BaseDelaySeconds: 2, BackoffFactor: 2, MaxDelaySeconds: 300}
	lane := func(sla, timeout, sweep float64, batch, workers int) LaneConfig {
		l := retry
		l.SLATargetSeconds = sla
		l.TimeoutSeconds = timeout
		l.SweepIntervalSeconds = sweep
		l.BatchSize = batch
		l.Workers = workers
		return l
	}
	return map[string]LaneConfig{
		"immediate": lane(1, 0.8, 1, 10, 1),
		"high":      lane(5, 5, 2, 25, 2),
		"standard":  lane(30, 30, 5, 50, 2),
		"retry":     lane(60, 30, 30, 25, 1),
	}
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Namespace:            "default",
		NamespaceNameRegex:   "[a-z0-9-_]{1,64}",
		EntryTTLSeconds:      24 * 60 * 60,
		PurgeIntervalSeconds: 60,
		Store:                StoreConfig{Backend: "pebble", RedisAddr: "localhost:6379", RedisPrefix: "txq"},
		Lanes:                DefaultLanes(),
		Breaker:              BreakerConfig{FailureThreshold: 5, RecoveryTimeoutSeconds: 60},
		Health:               HealthConfig{WarningThreshold: 100, CriticalThreshold: 500},
		Inline:               InlineConfig{TimeoutSeconds: 0.8, MaxConcurrent: 16},
		Metrics:              MetricsConfig{WindowSize: 100, RecentErrors: 20},
		Executor:             ExecutorConfig{TimeoutSeconds: 30},
		Log:                  LogConfig{Level: "info", Format: "text", RedactKeys: []string{"payload"}},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
// Lane entries present in the file are merged field by field over the lane defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero fields, lane by lane, from Default.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Namespace == "" {
		c.Namespace = d.Namespace
	}
	if c.NamespaceNameRegex == "" {
		c.NamespaceNameRegex = d.NamespaceNameRegex
	}
	if c.EntryTTLSeconds == 0 {
		c.EntryTTLSeconds = d.EntryTTLSeconds
	}
	if c.PurgeIntervalSeconds == 0 {
		c.PurgeIntervalSeconds = d.PurgeIntervalSeconds
	}
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = d.Store.RedisAddr
	}
	if c.Store.RedisPrefix == "" {
		c.Store.RedisPrefix = d.Store.RedisPrefix
	}
	if c.Lanes == nil {
		c.Lanes = map[string]LaneConfig{}
	}
	for name, def := range d.Lanes {
		c.Lanes[name] = mergeLane(c.Lanes[name], def)
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = d.Breaker.FailureThreshold
	}
	if c.Breaker.RecoveryTimeoutSeconds == 0 {
		c.Breaker.RecoveryTimeoutSeconds = d.Breaker.RecoveryTimeoutSeconds
	}
	if c.Health.WarningThreshold == 0 {
		c.Health.WarningThreshold = d.Health.WarningThreshold
	}
	if c.Health.CriticalThreshold == 0 {
		c.Health.CriticalThreshold = d.Health.CriticalThreshold
	}
	if c.Inline.TimeoutSeconds == 0 {
		c.Inline.TimeoutSeconds = d.Inline.TimeoutSeconds
	}
	if c.Inline.MaxConcurrent == 0 {
		c.Inline.MaxConcurrent = d.Inline.MaxConcurrent
	}
	if c.Metrics.WindowSize == 0 {
		c.Metrics.WindowSize = d.Metrics.WindowSize
	}
	if c.Metrics.RecentErrors == 0 {
		c.Metrics.RecentErrors = d.Metrics.RecentErrors
	}
	if c.Executor.TimeoutSeconds == 0 {
		c.Executor.TimeoutSeconds = d.Executor.TimeoutSeconds
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

func mergeLane(l, def LaneConfig) LaneConfig {
	if l.MaxAttempts == 0 {
		l.MaxAttempts = def.MaxAttempts
	}
	if l.BaseDelaySeconds == 0 {
		l.BaseDelaySeconds = def.BaseDelaySeconds
	}
	if l.BackoffFactor == 0 {
		l.BackoffFactor = def.BackoffFactor
	}
	if l.MaxDelaySeconds == 0 {
		l.MaxDelaySeconds = def.MaxDelaySeconds
	}
	if l.SLATargetSeconds == 0 {
		l.SLATargetSeconds = def.SLATargetSeconds
	}
	if l.TimeoutSeconds == 0 {
		l.TimeoutSeconds = def.TimeoutSeconds
	}
	if l.SweepIntervalSeconds == 0 {
		l.SweepIntervalSeconds = def.SweepIntervalSeconds
	}
	if l.BatchSize == 0 {
		l.BatchSize = def.BatchSize
	}
	if l.Workers == 0 {
		l.Workers = def.Workers
	}
	return l
}

// EntryTTL is the retention of lane data.
func (c Config) EntryTTL() time.Duration { return time.Duration(c.EntryTTLSeconds) * time.Second }

// PurgeInterval is how often expired lane data is swept.
func (c Config) PurgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalSeconds) * time.Second
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }
