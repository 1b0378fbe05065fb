package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rzbill/txq/internal/lane"
)

// Validate reports every problem found in c, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	re, err := regexp.Compile("^(?:" + c.NamespaceNameRegex + ")$")
	if err != nil {
		add("namespaceNameRegex: %v", err)
	} else if !re.MatchString(c.Namespace) {
		add("namespace %q does not match %q", c.Namespace, c.NamespaceNameRegex)
	}
	if c.EntryTTLSeconds <= 0 {
		add("entryTTLSeconds must be positive")
	}
	if c.PurgeIntervalSeconds <= 0 {
		add("purgeIntervalSeconds must be positive")
	}

	switch strings.ToLower(c.Store.Backend) {
	case "pebble":
	case "redis":
		if c.Store.RedisAddr == "" {
			add("store.redisAddr is required for the redis backend")
		}
	default:
		add("store.backend %q must be pebble or redis", c.Store.Backend)
	}

	for name, l := range c.Lanes {
		p, err := lane.Parse(name)
		if err != nil || p == lane.DeadLetter {
			add("lanes: %q is not a configurable lane", name)
			continue
		}
		switch {
		case l.MaxAttempts <= 0:
			add("lanes.%s.maxAttempts must be positive", name)
		case l.BaseDelaySeconds < 0 || l.MaxDelaySeconds < 0:
			add("lanes.%s delays must not be negative", name)
		case l.BackoffFactor < 1:
			add("lanes.%s.backoffFactor must be >= 1", name)
		case l.SLATargetSeconds <= 0 || l.TimeoutSeconds <= 0 || l.SweepIntervalSeconds <= 0:
			add("lanes.%s sla, timeout and sweep interval must be positive", name)
		case l.BatchSize <= 0 || l.Workers < 0:
			add("lanes.%s.batchSize must be positive and workers not negative", name)
		}
	}

	if c.Breaker.FailureThreshold <= 0 {
		add("breaker.failureThreshold must be positive")
	}
	if c.Breaker.RecoveryTimeoutSeconds <= 0 {
		add("breaker.recoveryTimeoutSeconds must be positive")
	}
	if c.Health.WarningThreshold <= 0 || c.Health.CriticalThreshold < c.Health.WarningThreshold {
		add("health thresholds must satisfy 0 < warning <= critical")
	}
	for _, code := range c.Classifier.PermanentStatusCodes {
		if code < 100 || code > 599 {
			add("classifier.permanentStatusCodes: %d is not an HTTP status", code)
		}
	}
	if c.Inline.TimeoutSeconds <= 0 || c.Inline.MaxConcurrent <= 0 {
		add("inline timeout and maxConcurrent must be positive")
	}
	if c.Executor.URL != "" {
		u, err := url.Parse(c.Executor.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("executor.url %q must be an absolute http(s) URL", c.Executor.URL)
		}
	}
	return errors.Join(errs...)
}
