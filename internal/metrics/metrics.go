package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costengine_estimates_total",
			Help: "Total number of computed estimates by terminal status",
		},
		[]string{"status"},
	)

	EstimateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costengine_estimate_duration_seconds",
			Help:    "Estimate computation duration in seconds by rate type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rate_type"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costengine_cache_lookups_total",
			Help: "Estimate cache lookups by outcome (hit, miss, expired)",
		},
		[]string{"outcome"},
	)

	NotComputableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costengine_not_computable_total",
			Help: "Not-computable estimates by reason code",
		},
		[]string{"reason"},
	)

	QuarantinedPlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costengine_quarantined_plans_total",
			Help: "Plans sent to the quarantine queue by reason code",
		},
		[]string{"reason"},
	)

	BackfillsTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "costengine_backfills_triggered_total",
			Help: "Usage backfill jobs requested during estimate builds",
		},
	)
)

var (
	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "costengine_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "costengine_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "costengine_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "costengine_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "costengine_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costengine_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
