package usage

import (
	"context"
	"time"
)

// Interval is one raw meter reading: KWh consumed over the interval
// beginning at Timestamp. SMT delivers 15-minute intervals; the builder
// only assumes the timestamp marks the interval start.
type Interval struct {
	Timestamp time.Time
	KWh       float64
	Minutes   int
}

// DailyTotal is a day-level reading for meters without interval data.
type DailyTotal struct {
	Date time.Time
	KWh  float64
}

// Source is the raw usage store contract. The engine never fetches from
// SMT itself; an external collaborator lands rows behind this interface.
type Source interface {
	QueryIntervals(ctx context.Context, meterID string, from, to time.Time) ([]Interval, error)
	QueryDailyTotals(ctx context.Context, meterID string, from, to time.Time) ([]DailyTotal, error)
	LatestTimestamp(ctx context.Context, meterID string) (time.Time, error)
}

// MonthlyCache optionally serves pre-aggregated monthly bucket rows
// persisted by the external aggregation job. Rows may carry alias
// spellings of bucket keys; the builder resolves them, it never trusts
// them blindly.
type MonthlyCache interface {
	// QueryMonthlyBuckets returns yearMonth -> (bucket key spelling -> kWh)
	// for the requested months. Missing months are simply absent.
	QueryMonthlyBuckets(ctx context.Context, homeID string, yearMonths []string) (map[string]map[string]float64, error)
}

// BackfillTrigger starts the external aggregation job that lands missing
// usage rows. It is a separate, opt-in contract so Build stays read-only.
type BackfillTrigger interface {
	RequestBackfill(ctx context.Context, homeID, meterID string) (jobID string, err error)
}
