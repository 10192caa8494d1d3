package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
	"github.com/bllfield/intelliwatt-costengine/internal/usage"
)

func TestMemoryEstimateLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.GetEstimate(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetEstimate(missing) = %v, %v", got, err)
	}

	now := time.Now()
	e := EstimateEntry{
		CacheKey:   "k1",
		HomeID:     "home-1",
		PlanID:     "plan-1",
		Status:     "OK",
		Payload:    []byte(`{"status":"OK"}`),
		ComputedAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := m.PutEstimate(ctx, e); err != nil {
		t.Fatalf("PutEstimate failed: %v", err)
	}
	got, err = m.GetEstimate(ctx, "k1")
	if err != nil || got == nil {
		t.Fatalf("GetEstimate(k1) = %v, %v", got, err)
	}
	if got.HomeID != "home-1" || got.Status != "OK" {
		t.Fatalf("entry = %+v", got)
	}

	expired := e
	expired.CacheKey = "k2"
	expired.ExpiresAt = now.Add(-time.Minute)
	if err := m.PutEstimate(ctx, expired); err != nil {
		t.Fatalf("PutEstimate failed: %v", err)
	}
	n, err := m.PurgeExpiredEstimates(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredEstimates = %d, %v, want 1", n, err)
	}
	if got, _ := m.GetEstimate(ctx, "k1"); got == nil {
		t.Fatalf("live entry purged")
	}

	n, err = m.DeleteEstimatesForHome(ctx, "home-1")
	if err != nil || n != 1 {
		t.Fatalf("DeleteEstimatesForHome = %d, %v, want 1", n, err)
	}
}

func TestMemoryQuarantineDedupe(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	item := QuarantineItem{
		ID:          "q1",
		DedupeKey:   "plan-1|USAGE_BUCKET_SUM_MISMATCH",
		PlanID:      "plan-1",
		ReasonCode:  "USAGE_BUCKET_SUM_MISMATCH",
		Severity:    SeverityQuarantine,
		Status:      QuarantineOpen,
		FirstSeenAt: now,
		LastSeenAt:  now,
		SeenCount:   1,
	}
	if err := m.UpsertQuarantineItem(ctx, item); err != nil {
		t.Fatalf("UpsertQuarantineItem failed: %v", err)
	}

	// Same defect seen again: no new row, count bumps.
	again := item
	again.ID = "q2"
	again.LastSeenAt = now.Add(time.Minute)
	if err := m.UpsertQuarantineItem(ctx, again); err != nil {
		t.Fatalf("UpsertQuarantineItem failed: %v", err)
	}

	got, err := m.GetQuarantineItemByDedupeKey(ctx, item.DedupeKey)
	if err != nil || got == nil {
		t.Fatalf("GetQuarantineItemByDedupeKey = %v, %v", got, err)
	}
	if got.ID != "q1" || got.SeenCount != 2 {
		t.Fatalf("deduped item = %+v", got)
	}

	open, err := m.ListQuarantineItems(ctx, QuarantineOpen, 0)
	if err != nil || len(open) != 1 {
		t.Fatalf("open items = %d, %v, want 1", len(open), err)
	}

	if err := m.ResolveQuarantineItem(ctx, "q1", "template fixed"); err != nil {
		t.Fatalf("ResolveQuarantineItem failed: %v", err)
	}
	got, _ = m.GetQuarantineItem(ctx, "q1")
	if got.Status != QuarantineResolved || got.Resolution != "template fixed" {
		t.Fatalf("resolved item = %+v", got)
	}

	// Resolved item seen again reopens.
	if err := m.UpsertQuarantineItem(ctx, again); err != nil {
		t.Fatalf("UpsertQuarantineItem failed: %v", err)
	}
	got, _ = m.GetQuarantineItem(ctx, "q1")
	if got.Status != QuarantineOpen || got.SeenCount != 3 {
		t.Fatalf("reopened item = %+v", got)
	}
}

func TestMemoryIntervalReadings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	readings := []IntervalReading{
		{MeterID: "meter-1", Timestamp: base, Source: SourceSMT, KWh: 0.25, Minutes: 15},
		{MeterID: "meter-1", Timestamp: base.Add(15 * time.Minute), Source: SourceSMT, KWh: 0.30, Minutes: 15},
		{MeterID: "meter-2", Timestamp: base, Source: SourceSMT, KWh: 0.50, Minutes: 15},
	}
	if err := m.SaveIntervalReadings(ctx, readings); err != nil {
		t.Fatalf("SaveIntervalReadings failed: %v", err)
	}
	// Replay of the same rows must not duplicate.
	if err := m.SaveIntervalReadings(ctx, readings[:1]); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	got, err := m.QueryIntervalReadings(ctx, "meter-1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("QueryIntervalReadings failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("readings = %d, want 2", len(got))
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Fatalf("readings not ordered by timestamp")
	}

	latest, err := m.LatestIntervalTimestamp(ctx, "meter-1")
	if err != nil {
		t.Fatalf("LatestIntervalTimestamp failed: %v", err)
	}
	if !latest.Equal(base.Add(15 * time.Minute)) {
		t.Fatalf("latest = %s", latest)
	}

	// The upper bound is inclusive: callers pass the latest timestamp back
	// as `to` and must get that reading.
	got, err = m.QueryIntervalReadings(ctx, "meter-1", base, latest)
	if err != nil {
		t.Fatalf("QueryIntervalReadings failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("readings through latest = %d, want 2", len(got))
	}
}

func TestBuilderResolvesFullMonthThroughStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}

	// A daily-totals meter with every day of April landed. The newest day is
	// the window end itself; dropping it would sink the whole month.
	var rows []IntervalReading
	for day := 1; day <= 30; day++ {
		rows = append(rows, IntervalReading{
			MeterID:   "meter-1",
			Timestamp: time.Date(2025, time.April, day, 0, 0, 0, 0, loc),
			Source:    SourceSMT,
			KWh:       10,
			Minutes:   1440,
		})
	}
	if err := m.SaveIntervalReadings(ctx, rows); err != nil {
		t.Fatalf("SaveIntervalReadings failed: %v", err)
	}

	b := usage.NewBuilder(NewIntervalSource(m), nil, usage.Config{Location: loc}, nil)
	res, err := b.Build(ctx, usage.Request{
		HomeID:       "home-1",
		MeterID:      "meter-1",
		MonthsCount:  1,
		RequiredKeys: []bucket.Key{bucket.AllTotal},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	row, ok := res.Rows["2025-04"]
	if !ok {
		t.Fatalf("no row for 2025-04: %+v", res.YearMonths)
	}
	if row.Unresolvable {
		t.Fatalf("full month unresolvable: %s", row.UnresolvableReason)
	}
	if !res.Coverage.Complete() {
		t.Fatalf("coverage = %+v, want complete", res.Coverage)
	}
	if res.AnnualKWh == nil || math.Abs(*res.AnnualKWh-300) > 1e-9 {
		t.Fatalf("annual = %v, want 300", res.AnnualKWh)
	}
	if got := row.Buckets[bucket.AllTotal.String()]; math.Abs(got-300) > 1e-9 {
		t.Fatalf("all.total = %v, want 300", got)
	}
}

func TestIntervalSourceSplitsDailyRows(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	if err := m.SaveIntervalReadings(ctx, []IntervalReading{
		{MeterID: "meter-1", Timestamp: base, Source: SourceSMT, KWh: 0.25, Minutes: 15},
		{MeterID: "meter-1", Timestamp: base.AddDate(0, 0, 1), Source: SourceSMT, KWh: 24.0, Minutes: 1440},
	}); err != nil {
		t.Fatalf("SaveIntervalReadings failed: %v", err)
	}

	src := NewIntervalSource(m)
	ivs, err := src.QueryIntervals(ctx, "meter-1", base, base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("QueryIntervals failed: %v", err)
	}
	if len(ivs) != 1 || ivs[0].Minutes != 15 {
		t.Fatalf("intervals = %+v", ivs)
	}

	days, err := src.QueryDailyTotals(ctx, "meter-1", base, base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("QueryDailyTotals failed: %v", err)
	}
	if len(days) != 1 || days[0].KWh != 24.0 {
		t.Fatalf("daily totals = %+v", days)
	}
}

func TestMemorySettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if v, err := m.GetSetting(ctx, "cache.ttl"); err != nil || v != "" {
		t.Fatalf("GetSetting(unset) = %q, %v", v, err)
	}
	if err := m.SetSetting(ctx, "cache.ttl", "24h"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if v, _ := m.GetSetting(ctx, "cache.ttl"); v != "24h" {
		t.Fatalf("GetSetting = %q, want 24h", v)
	}
}
