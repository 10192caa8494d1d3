package storage

import "time"

// EstimateEntry is one cached cost estimate, keyed by the composite cache
// key. Payload is the serialized estimate; the engine never inspects it
// beyond the status column.
type EstimateEntry struct {
	CacheKey   string    `json:"cacheKey" gorm:"primaryKey;column:cache_key"`
	HomeID     string    `json:"homeId" gorm:"column:home_id;index"`
	PlanID     string    `json:"planId" gorm:"column:plan_id;index"`
	Status     string    `json:"status" gorm:"column:status"`
	Payload    []byte    `json:"payload" gorm:"column:payload"`
	ComputedAt time.Time `json:"computed_at" gorm:"column:computed_at"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"column:expires_at;index"`
}

// Quarantine item lifecycle states.
const (
	QuarantineOpen     = "open"
	QuarantineResolved = "resolved"

	SeverityQuarantine    = "quarantine"
	SeverityInformational = "informational"
)

// QuarantineItem records a plan pulled from (or flagged in) comparison
// results. DedupeKey makes repeated sightings of the same defect idempotent:
// re-reporting bumps SeenCount and LastSeenAt instead of inserting a row.
type QuarantineItem struct {
	ID         string `json:"id" gorm:"primaryKey;column:id"`
	DedupeKey  string `json:"dedupeKey" gorm:"uniqueIndex;column:dedupe_key"`
	PlanID     string `json:"planId" gorm:"column:plan_id;index"`
	HomeID     string `json:"homeId,omitempty" gorm:"column:home_id"`
	ReasonCode string `json:"reasonCode" gorm:"column:reason_code"`
	Detail     string `json:"detail,omitempty" gorm:"column:detail"`
	Severity   string `json:"severity" gorm:"column:severity"`
	Status     string `json:"status" gorm:"column:status;index"`

	FirstSeenAt time.Time  `json:"first_seen_at" gorm:"column:first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at" gorm:"column:last_seen_at"`
	SeenCount   int        `json:"seenCount" gorm:"column:seen_count"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	Resolution  string     `json:"resolution,omitempty" gorm:"column:resolution"`
}

// IntervalReading is one landed meter interval. The unique index makes the
// external collector's at-least-once delivery safe to replay.
type IntervalReading struct {
	ID        uint      `json:"-" gorm:"primaryKey;column:id"`
	MeterID   string    `json:"meterId" gorm:"column:meter_id;uniqueIndex:idx_meter_reading"`
	Timestamp time.Time `json:"timestamp" gorm:"column:ts;uniqueIndex:idx_meter_reading"`
	Source    string    `json:"source" gorm:"column:source;uniqueIndex:idx_meter_reading"`
	KWh       float64   `json:"kwh" gorm:"column:kwh"`
	Minutes   int       `json:"minutes" gorm:"column:minutes"`
}

// Reading sources.
const (
	SourceSMT           = "smt"
	SourceManualMonthly = "manual_monthly"
	SourceManualAnnual  = "manual_annual"
)

// Setting is a key/value runtime override, editable without a redeploy.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob tracks the last run of each background job for visibility.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}
