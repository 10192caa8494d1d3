package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bllfield/intelliwatt-costengine/internal/metrics"
	"github.com/bllfield/intelliwatt-costengine/internal/storage"
)

// Run starts the maintenance worker: it periodically purges expired
// estimate cache entries, using PostgreSQL advisory locks so that in a
// multi-instance deployment only one worker executes the job.
func Run(ctx context.Context, driver, dsn string) error {
	if driver == "" {
		driver = "postgrespool"
	}
	if driver != "postgrespool" {
		return fmt.Errorf("cron worker requires COSTENGINE_DB_DRIVER=postgrespool (got %q)", driver)
	}

	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	// Interval can be integer seconds or a cron expression, with a DB
	// settings override so it is tunable without a redeploy.
	intervalSetting := "3600"
	if raw := os.Getenv("COSTENGINE_CRON_INTERVAL_SECONDS"); raw != "" {
		intervalSetting = raw
	}
	if val, err := st.GetSetting(ctx, "purge_interval_seconds"); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(time.Hour)
	}

	// Starting fresh: run immediately, then schedule.
	nextRun := time.Now()

	jobName := "purge_expired_estimates"
	const lockKey int64 = 4217

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, "purge_interval_seconds"); err == nil && val != "" {
				if val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = getNextRun(intervalSetting, time.Now())
				}
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := st.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			var runErr error
			var purged int64
			func() {
				defer func() {
					if _, err := st.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()
				purged, runErr = st.PurgeExpiredEstimates(ctx, time.Now())
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			success := runErr == nil
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, success, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s purged %d entries (duration=%s)", jobName, purged, dur)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}
