package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries the engine's runtime settings, sourced from environment
// variables with sane defaults. Database settings are read by the storage
// factory; everything else is engine behavior.
type Config struct {
	// DBDriver selects the storage backend: memory, sqlite, postgres, or
	// postgrespool.
	DBDriver string
	DBDSN    string

	// Timezone is the IANA name used for local-calendar bucket aggregation.
	Timezone string

	// MonthsCount is how many trailing months an estimate covers.
	MonthsCount int

	// CacheTTL bounds how long a cached estimate is served.
	CacheTTL time.Duration

	// BackfillBudget bounds how long an estimate call waits for a usage
	// backfill before returning a partial result.
	BackfillBudget time.Duration

	// AliasEpsilonKWh bounds alias-spelling disagreement during bucket
	// resolution; SumEpsilonKWh bounds the time-of-use reconciliation check.
	AliasEpsilonKWh float64
	SumEpsilonKWh   float64

	// VersionTag identifies the estimator revision in cache keys.
	VersionTag string

	// MetricsAddr is the listen address for the Prometheus endpoint.
	MetricsAddr string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	cfg := Config{
		DBDriver:        envString("COSTENGINE_DB_DRIVER", "memory"),
		DBDSN:           envString("COSTENGINE_DB_DSN", ""),
		Timezone:        envString("COSTENGINE_TIMEZONE", "America/Chicago"),
		MonthsCount:     envInt("COSTENGINE_MONTHS_COUNT", 12),
		CacheTTL:        envDuration("COSTENGINE_CACHE_TTL", 24*time.Hour),
		BackfillBudget:  envDuration("COSTENGINE_BACKFILL_BUDGET", 30*time.Second),
		AliasEpsilonKWh: envFloat("COSTENGINE_ALIAS_EPSILON_KWH", 0.5),
		SumEpsilonKWh:   envFloat("COSTENGINE_SUM_EPSILON_KWH", 0.5),
		VersionTag:      envString("COSTENGINE_VERSION_TAG", "v1"),
		MetricsAddr:     envString("COSTENGINE_METRICS_ADDR", ":9090"),
	}
	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
