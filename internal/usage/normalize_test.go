package usage

import (
	"math"
	"testing"
	"time"
)

func TestMonthlyToIntervalsPreservesTotals(t *testing.T) {
	loc := testLoc(t)
	entries := []MonthlyEntry{
		{Year: 2024, Month: 1, TotalKWh: 1200},
		{Year: 2024, Month: 2, TotalKWh: 1100},
	}
	ivs, err := MonthlyToIntervals(entries, NormalizeOptions{Location: loc})
	if err != nil {
		t.Fatalf("MonthlyToIntervals failed: %v", err)
	}
	if len(ivs) == 0 {
		t.Fatalf("no intervals produced")
	}
	total := 0.0
	for _, iv := range ivs {
		if iv.Minutes != 15 {
			t.Fatalf("interval minutes = %d, want 15", iv.Minutes)
		}
		total += iv.KWh
	}
	if math.Abs(total-2300) > 1e-6 {
		t.Fatalf("interval sum = %.4f, want 2300", total)
	}
}

func TestAnnualToIntervalsCountAndTotal(t *testing.T) {
	loc := testLoc(t)
	ivs, err := AnnualToIntervals(10950,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(2024, time.December, 31, 0, 0, 0, 0, loc),
		NormalizeOptions{Location: loc})
	if err != nil {
		t.Fatalf("AnnualToIntervals failed: %v", err)
	}
	// 366 days x 96 slots, minus the spring-forward hour's 4 slots, plus
	// the fall-back hour's 4.
	if math.Abs(float64(len(ivs))-366*96) > 8 {
		t.Fatalf("interval count = %d, want about %d", len(ivs), 366*96)
	}
	total := 0.0
	for _, iv := range ivs {
		total += iv.KWh
	}
	if math.Abs(total-10950) > 1e-6 {
		t.Fatalf("interval sum = %.4f, want 10950", total)
	}
}

func TestBillingPeriod(t *testing.T) {
	loc := testLoc(t)
	start, end := BillingPeriod(2024, 3, 15, loc)
	if start.Month() != time.February || start.Day() != 16 {
		t.Fatalf("billing start = %s, want Feb 16", start.Format("2006-01-02"))
	}
	// End is exclusive: the period runs through Mar 15.
	if end.Month() != time.March || end.Day() != 16 {
		t.Fatalf("billing end = %s, want Mar 16 (exclusive)", end.Format("2006-01-02"))
	}
}

func TestBillingPeriodClampsToMonthLength(t *testing.T) {
	loc := testLoc(t)
	_, end := BillingPeriod(2023, 2, 31, loc)
	if end.Month() != time.March || end.Day() != 1 {
		t.Fatalf("billing end = %s, want Mar 1 (Feb 28 inclusive)", end.Format("2006-01-02"))
	}
}

func TestTravelDaysExcludedAndReweighted(t *testing.T) {
	loc := testLoc(t)
	travel := TravelRange{
		Start: time.Date(2024, time.January, 10, 0, 0, 0, 0, loc),
		End:   time.Date(2024, time.January, 17, 0, 0, 0, 0, loc),
	}
	ivs, err := MonthlyToIntervals(
		[]MonthlyEntry{{Year: 2024, Month: 1, TotalKWh: 1240}},
		NormalizeOptions{Location: loc, TravelRanges: []TravelRange{travel}})
	if err != nil {
		t.Fatalf("MonthlyToIntervals failed: %v", err)
	}
	total := 0.0
	for _, iv := range ivs {
		if travel.contains(iv.Timestamp) {
			t.Fatalf("interval on travel day %s", iv.Timestamp.Format("2006-01-02"))
		}
		total += iv.KWh
	}
	// Entered total is preserved across the remaining days.
	if math.Abs(total-1240) > 1e-6 {
		t.Fatalf("interval sum = %.4f, want 1240", total)
	}
	// 31 days minus 8 excluded, 96 slots each.
	if want := 23 * 96; len(ivs) != want {
		t.Fatalf("interval count = %d, want %d", len(ivs), want)
	}
}
