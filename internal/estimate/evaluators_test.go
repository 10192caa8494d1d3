package estimate

import (
	"errors"
	"testing"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
	"github.com/bllfield/intelliwatt-costengine/internal/rateplan"
)

func f64(v float64) *float64 { return &v }

func monthOf(total float64, extra map[string]float64) MonthUsage {
	buckets := map[string]float64{bucket.AllTotal.String(): total}
	for k, v := range extra {
		buckets[k] = v
	}
	return MonthUsage{YearMonth: "2025-04", Buckets: buckets}
}

func TestEvalFixed(t *testing.T) {
	got := evalFixed(12.5, monthOf(1000, nil))
	if got != 12500 {
		t.Fatalf("evalFixed = %d cents, want 12500", got)
	}
}

func TestEvalTieredMarginalBands(t *testing.T) {
	sched := &rateplan.TieredSchedule{Tiers: []rateplan.Tier{
		{UpToKWh: f64(500), CentsPerKWh: 10},
		{UpToKWh: f64(1000), CentsPerKWh: 12},
		{CentsPerKWh: 15},
	}}
	// 500@10 + 500@12 + 200@15 = 5000 + 6000 + 3000.
	if got := evalTiered(sched, monthOf(1200, nil)); got != 14000 {
		t.Fatalf("evalTiered(1200) = %d cents, want 14000", got)
	}
	// Usage inside the first band only.
	if got := evalTiered(sched, monthOf(300, nil)); got != 3000 {
		t.Fatalf("evalTiered(300) = %d cents, want 3000", got)
	}
}

func TestEvalTieredMonotonic(t *testing.T) {
	sched := &rateplan.TieredSchedule{Tiers: []rateplan.Tier{
		{UpToKWh: f64(500), CentsPerKWh: 14},
		{CentsPerKWh: 9},
	}}
	prev := Cents(-1)
	for _, kwh := range []float64{0, 100, 499, 500, 501, 900, 2000} {
		got := evalTiered(sched, monthOf(kwh, nil))
		if got < prev {
			t.Fatalf("cost decreased at %v kWh: %d < %d", kwh, got, prev)
		}
		prev = got
	}
}

func TestEvalTimeOfUse(t *testing.T) {
	periods := []rateplan.TOUPeriod{
		{Label: "day", DayType: bucket.DayAll, StartMinute: 360, EndMinute: 1260, EnergyCentsPerKWh: 18},
		{Label: "night", DayType: bucket.DayAll, StartMinute: 1260, EndMinute: 360, EnergyCentsPerKWh: 6},
	}
	m := monthOf(900, map[string]float64{
		"kwh.m.all.0600-2100": 600,
		"kwh.m.all.2100-0600": 300,
	})
	got, err := evalTimeOfUse(periods, m, 0.5)
	if err != nil {
		t.Fatalf("evalTimeOfUse failed: %v", err)
	}
	// 600@18 + 300@6 = 10800 + 1800.
	if got != 12600 {
		t.Fatalf("evalTimeOfUse = %d cents, want 12600", got)
	}
}

func TestEvalTimeOfUseSumMismatch(t *testing.T) {
	periods := []rateplan.TOUPeriod{
		{Label: "day", DayType: bucket.DayAll, StartMinute: 360, EndMinute: 1260, EnergyCentsPerKWh: 18},
		{Label: "night", DayType: bucket.DayAll, StartMinute: 1260, EndMinute: 360, EnergyCentsPerKWh: 6},
	}
	// Periods sum to 900 but the month total says 950.
	m := monthOf(950, map[string]float64{
		"kwh.m.all.0600-2100": 600,
		"kwh.m.all.2100-0600": 300,
	})
	_, err := evalTimeOfUse(periods, m, 0.5)
	var mismatch *BucketSumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected BucketSumMismatchError, got %v", err)
	}
	if mismatch.PeriodKWh != 900 || mismatch.TotalKWh != 950 {
		t.Fatalf("mismatch detail = %+v", mismatch)
	}
}

func TestEvalTimeOfUseMissingBucket(t *testing.T) {
	periods := []rateplan.TOUPeriod{
		{Label: "day", DayType: bucket.DayAll, StartMinute: 360, EndMinute: 1260, EnergyCentsPerKWh: 18},
	}
	_, err := evalTimeOfUse(periods, monthOf(900, nil), 0.5)
	if err == nil {
		t.Fatalf("expected missing-bucket error")
	}
	var mismatch *BucketSumMismatchError
	if errors.As(err, &mismatch) {
		t.Fatalf("missing bucket must not report as a sum mismatch")
	}
}

func TestEvalTimeOfUseDuplicateWindowCountedOnce(t *testing.T) {
	// Two periods sharing a window (different prices would be invalid, but
	// identical windows appear on free-weekend style plans split by label).
	periods := []rateplan.TOUPeriod{
		{Label: "a", DayType: bucket.DayAll, StartMinute: 0, EndMinute: 720, EnergyCentsPerKWh: 10},
		{Label: "b", DayType: bucket.DayAll, StartMinute: 720, EndMinute: 0, EnergyCentsPerKWh: 10},
		{Label: "b2", DayType: bucket.DayAll, StartMinute: 720, EndMinute: 0, EnergyCentsPerKWh: 0},
	}
	m := monthOf(1000, map[string]float64{
		"kwh.m.all.0000-1200": 400,
		"kwh.m.all.1200-0000": 600,
	})
	// The duplicate window must not be double counted in the sum check.
	if _, err := evalTimeOfUse(periods, m, 0.5); err != nil {
		t.Fatalf("evalTimeOfUse failed: %v", err)
	}
}

func TestEvalCreditsStacking(t *testing.T) {
	credits := &rateplan.BillCredits{Rules: []rateplan.BillCredit{
		{MinUsageKWh: 500, CreditDollars: 25},
		{MinUsageKWh: 1000, CreditDollars: 50},
	}}
	if got := evalCredits(credits, monthOf(1200, nil)); got != -7500 {
		t.Fatalf("stacking credits = %d cents, want -7500", got)
	}
	if got := evalCredits(credits, monthOf(700, nil)); got != -2500 {
		t.Fatalf("single credit = %d cents, want -2500", got)
	}
	if got := evalCredits(credits, monthOf(400, nil)); got != 0 {
		t.Fatalf("no credit = %d cents, want 0", got)
	}
}

func TestEvalCreditsExclusive(t *testing.T) {
	credits := &rateplan.BillCredits{
		Exclusive: true,
		Rules: []rateplan.BillCredit{
			{MinUsageKWh: 500, CreditDollars: 25},
			{MinUsageKWh: 1000, CreditDollars: 50},
		},
	}
	if got := evalCredits(credits, monthOf(1200, nil)); got != -5000 {
		t.Fatalf("exclusive credits = %d cents, want -5000", got)
	}
}

func TestApplyMinimumFee(t *testing.T) {
	rules := []rateplan.MinimumUsageRule{
		{Kind: rateplan.MinimumFee, FloorKWh: 800, FeeDollars: 9.95},
	}
	fee, topUp := applyMinimum(rules, 6000, monthOf(500, nil))
	if fee != 995 || topUp != 0 {
		t.Fatalf("fee = %d, topUp = %d, want 995, 0", fee, topUp)
	}
	fee, topUp = applyMinimum(rules, 6000, monthOf(800, nil))
	if fee != 0 || topUp != 0 {
		t.Fatalf("at-floor month must not be charged: fee = %d, topUp = %d", fee, topUp)
	}
}

func TestApplyMinimumBillTopUp(t *testing.T) {
	rules := []rateplan.MinimumUsageRule{
		{Kind: rateplan.MinimumBill, FloorDollars: 35},
	}
	fee, topUp := applyMinimum(rules, 2100, monthOf(150, nil))
	if fee != 0 || topUp != 1400 {
		t.Fatalf("fee = %d, topUp = %d, want 0, 1400", fee, topUp)
	}
	// Subtotal above the floor: exact, no top-up.
	if _, topUp = applyMinimum(rules, 3500, monthOf(300, nil)); topUp != 0 {
		t.Fatalf("floor met exactly, topUp = %d, want 0", topUp)
	}
}
