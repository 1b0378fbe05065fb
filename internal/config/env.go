package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays TXQ_* environment variables onto cfg. Per-lane values use
// TXQ_LANE_<LANE>_<FIELD>, e.g. TXQ_LANE_HIGH_BATCH_SIZE.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TXQ_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	envInt("TXQ_ENTRY_TTL_SECONDS", &cfg.EntryTTLSeconds)
	envInt("TXQ_PURGE_INTERVAL_SECONDS", &cfg.PurgeIntervalSeconds)
	if v := os.Getenv("TXQ_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TXQ_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	envInt("TXQ_REDIS_DB", &cfg.Store.RedisDB)
	if v := os.Getenv("TXQ_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	envInt("TXQ_BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold)
	envFloat("TXQ_BREAKER_RECOVERY_TIMEOUT_SECONDS", &cfg.Breaker.RecoveryTimeoutSeconds)
	envInt("TXQ_HEALTH_WARNING_THRESHOLD", &cfg.Health.WarningThreshold)
	envInt("TXQ_HEALTH_CRITICAL_THRESHOLD", &cfg.Health.CriticalThreshold)
	if v := os.Getenv("TXQ_INLINE_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Inline.Disabled = b
		}
	}
	envFloat("TXQ_INLINE_TIMEOUT_SECONDS", &cfg.Inline.TimeoutSeconds)
	if v := os.Getenv("TXQ_EXECUTOR_URL"); v != "" {
		cfg.Executor.URL = v
	}
	envFloat("TXQ_EXECUTOR_TIMEOUT_SECONDS", &cfg.Executor.TimeoutSeconds)
	if v := os.Getenv("TXQ_PERMANENT_STATUS_CODES"); v != "" {
		cfg.Classifier.PermanentStatusCodes = nil
		for _, p := range splitList(v) {
			if n, err := strconv.Atoi(p); err == nil {
				cfg.Classifier.PermanentStatusCodes = append(cfg.Classifier.PermanentStatusCodes, n)
			}
		}
	}
	if v := os.Getenv("TXQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TXQ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	for name, l := range cfg.Lanes {
		prefix := "TXQ_LANE_" + strings.ToUpper(name) + "_"
		envInt(prefix+"MAX_ATTEMPTS", &l.MaxAttempts)
		envFloat(prefix+"BASE_DELAY_SECONDS", &l.BaseDelaySeconds)
		envFloat(prefix+"BACKOFF_FACTOR", &l.BackoffFactor)
		envFloat(prefix+"MAX_DELAY_SECONDS", &l.MaxDelaySeconds)
		envFloat(prefix+"SLA_TARGET_SECONDS", &l.SLATargetSeconds)
		envFloat(prefix+"TIMEOUT_SECONDS", &l.TimeoutSeconds)
		envFloat(prefix+"SWEEP_INTERVAL_SECONDS", &l.SweepIntervalSeconds)
		envInt(prefix+"BATCH_SIZE", &l.BatchSize)
		envInt(prefix+"WORKERS", &l.Workers)
		cfg.Lanes[name] = l
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
