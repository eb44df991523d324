package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CPPMSPLIT_[SECTION]_[KEY] (e.g., CPPMSPLIT_PERFORMANCE_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.OutputDir, "CPPMSPLIT_OUTPUT_DIR")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "CPPMSPLIT_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRate, "CPPMSPLIT_WATCH_MAX_RATE")

	// Performance
	setEnvInt(&cfg.Performance.Workers, "CPPMSPLIT_PERFORMANCE_WORKERS")

	// Database
	setEnvBoolPtr(&cfg.DB.Enabled, "CPPMSPLIT_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "CPPMSPLIT_DB_PATH")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "CPPMSPLIT_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "CPPMSPLIT_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CPPMSPLIT_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "CPPMSPLIT_OBSERVABILITY_OTLP_INSECURE")
	setEnvBool(&cfg.Observability.EnableTracing, "CPPMSPLIT_OBSERVABILITY_ENABLE_TRACING")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
