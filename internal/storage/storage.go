package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for the estimate cache, the quarantine
// queue, and landed interval readings.
type Storage interface {
	// Estimate cache
	GetEstimate(ctx context.Context, cacheKey string) (*EstimateEntry, error)
	PutEstimate(ctx context.Context, e EstimateEntry) error
	DeleteEstimate(ctx context.Context, cacheKey string) error
	DeleteEstimatesForHome(ctx context.Context, homeID string) (int64, error)
	PurgeExpiredEstimates(ctx context.Context, now time.Time) (int64, error)

	// Quarantine queue
	UpsertQuarantineItem(ctx context.Context, item QuarantineItem) error
	GetQuarantineItem(ctx context.Context, id string) (*QuarantineItem, error)
	GetQuarantineItemByDedupeKey(ctx context.Context, dedupeKey string) (*QuarantineItem, error)
	ListQuarantineItems(ctx context.Context, status string, limit int) ([]QuarantineItem, error)
	ResolveQuarantineItem(ctx context.Context, id, resolution string) error

	// Interval readings. Query bounds are inclusive on both ends: the usage
	// builder passes LatestIntervalTimestamp back as the upper bound, so an
	// exclusive `to` would always drop the newest reading.
	SaveIntervalReadings(ctx context.Context, readings []IntervalReading) error
	QueryIntervalReadings(ctx context.Context, meterID string, from, to time.Time) ([]IntervalReading, error)
	LatestIntervalTimestamp(ctx context.Context, meterID string) (time.Time, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs and cross-instance locking
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	Ping(ctx context.Context) error
	Close() error
}
