package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/txq/internal/lane"
)

// LaneConfig holds the per-lane execution budget.
type LaneConfig struct {
	SLATarget time.Duration
	Timeout   time.Duration
	BatchSize int
}

// HealthThresholds maps lane length to a health label.
type HealthThresholds struct {
	Warning  int
	Critical int
}

// InlineOptions bounds the best-effort attempt made for immediate entries.
type InlineOptions struct {
	Disabled      bool
	Timeout       time.Duration
	MaxConcurrent int64
}

// Config configures a Manager.
type Config struct {
	Lanes     map[lane.Priority]LaneConfig
	Health    HealthThresholds
	Inline    InlineOptions
	Validator Validator
	Now       func() time.Time
	NewID     func() string
}

// DefaultLanes returns the built-in lane budgets.
func DefaultLanes() map[lane.Priority]LaneConfig {
	return map[lane.Priority]LaneConfig{
		lane.Immediate: {SLATarget: time.Second, Timeout: 800 * time.Millisecond, BatchSize: 10},
		lane.High:      {SLATarget: 5 * time.Second, Timeout: 5 * time.Second, BatchSize: 25},
		lane.Standard:  {SLATarget: 30 * time.Second, Timeout: 30 * time.Second, BatchSize: 50},
		lane.Retry:     {SLATarget: 60 * time.Second, Timeout: 30 * time.Second, BatchSize: 25},
	}
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Lanes:  DefaultLanes(),
		Health: HealthThresholds{Warning: 100, Critical: 500},
		Inline: InlineOptions{Timeout: 800 * time.Millisecond, MaxConcurrent: 16},
	}
}

func (c *Config) applyDefaults() error {
	defaults := DefaultConfig()
	lanes := make(map[lane.Priority]LaneConfig, len(defaults.Lanes))
	for p, d := range defaults.Lanes {
		lc, ok := c.Lanes[p]
		if !ok {
			lanes[p] = d
			continue
		}
		if lc.SLATarget <= 0 {
			lc.SLATarget = d.SLATarget
		}
		if lc.Timeout <= 0 {
			lc.Timeout = d.Timeout
		}
		if lc.BatchSize <= 0 {
			lc.BatchSize = d.BatchSize
		}
		lanes[p] = lc
	}
	for p := range c.Lanes {
		if _, ok := lanes[p]; !ok {
			return fmt.Errorf("%w: %q cannot be configured", ErrUnknownLane, p)
		}
	}
	c.Lanes = lanes

	if c.Health.Warning <= 0 {
		c.Health.Warning = defaults.Health.Warning
	}
	if c.Health.Critical <= 0 {
		c.Health.Critical = defaults.Health.Critical
	}
	if c.Health.Critical < c.Health.Warning {
		return fmt.Errorf("pipeline: critical threshold %d below warning threshold %d", c.Health.Critical, c.Health.Warning)
	}
	if c.Inline.Timeout <= 0 {
		c.Inline.Timeout = defaults.Inline.Timeout
	}
	if c.Inline.MaxConcurrent <= 0 {
		c.Inline.MaxConcurrent = defaults.Inline.MaxConcurrent
	}
	if c.Validator == nil {
		v, err := NewSchemaValidator(nil, "")
		if err != nil {
			return err
		}
		c.Validator = v
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return nil
}
