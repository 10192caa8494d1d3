package usage

import (
	"fmt"
	"time"
)

// Manual-entry normalization: users without meter access enter monthly or
// annual totals, which are expanded into flat 15-minute intervals and
// landed in the same store the builder reads.

// MonthlyEntry is one user-entered month total.
type MonthlyEntry struct {
	Year     int
	Month    int
	TotalKWh float64
}

// TravelRange marks days the home sat empty; those days are excluded and
// the entered total re-spread across the remaining days.
type TravelRange struct {
	Start time.Time
	End   time.Time
}

func (r TravelRange) contains(t time.Time) bool {
	day := civilDate(t)
	return !day.Before(civilDate(r.Start)) && !day.After(civilDate(r.End))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeOptions configure manual-entry expansion.
type NormalizeOptions struct {
	Location *time.Location
	// BillEndDay aligns months to billing periods instead of calendar
	// months: a bill-end day of 15 makes the March period Feb 16 - Mar 15.
	// Zero keeps calendar months.
	BillEndDay   int
	TravelRanges []TravelRange
}

const normalizeIntervalMinutes = 15

// MonthlyToIntervals expands monthly totals into 15-minute intervals with a
// flat distribution. Each month's entered total is preserved exactly
// (travel days excluded, remainder re-weighted).
func MonthlyToIntervals(entries []MonthlyEntry, opts NormalizeOptions) ([]Interval, error) {
	loc := opts.Location
	if loc == nil {
		loc = DefaultConfig().Location
	}
	var out []Interval
	for _, e := range entries {
		if e.Month < 1 || e.Month > 12 {
			return nil, fmt.Errorf("usage: invalid month %d", e.Month)
		}
		if e.TotalKWh < 0 {
			return nil, fmt.Errorf("usage: negative monthly total for %d-%02d", e.Year, e.Month)
		}
		var start, end time.Time
		if opts.BillEndDay >= 1 && opts.BillEndDay <= 31 {
			start, end = BillingPeriod(e.Year, e.Month, opts.BillEndDay, loc)
		} else {
			start = time.Date(e.Year, time.Month(e.Month), 1, 0, 0, 0, 0, loc)
			end = start.AddDate(0, 1, 0)
		}
		out = append(out, spreadFlat(start, end, e.TotalKWh, opts.TravelRanges)...)
	}
	return out, nil
}

// AnnualToIntervals expands an annual total over [start, end] (inclusive
// dates) into flat 15-minute intervals.
func AnnualToIntervals(annualKWh float64, start, end time.Time, opts NormalizeOptions) ([]Interval, error) {
	if annualKWh < 0 {
		return nil, fmt.Errorf("usage: negative annual total")
	}
	loc := opts.Location
	if loc == nil {
		loc = DefaultConfig().Location
	}
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !e.After(s) {
		return nil, fmt.Errorf("usage: annual range end before start")
	}
	return spreadFlat(s, e, annualKWh, opts.TravelRanges), nil
}

// BillingPeriod computes the (start, end) of the billing month ending on
// billEndDay of the given month, clamped to month length. End is exclusive.
func BillingPeriod(year, month, billEndDay int, loc *time.Location) (time.Time, time.Time) {
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, loc).Day()
	endDay := billEndDay
	if endDay > lastDay {
		endDay = lastDay
	}
	end := time.Date(year, time.Month(month), endDay, 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	prevYear, prevMonth := year, month-1
	if prevMonth == 0 {
		prevYear, prevMonth = year-1, 12
	}
	prevLast := time.Date(prevYear, time.Month(prevMonth)+1, 0, 0, 0, 0, 0, loc).Day()
	startDay := billEndDay + 1
	if startDay > prevLast {
		startDay = prevLast
	}
	start := time.Date(prevYear, time.Month(prevMonth), startDay, 0, 0, 0, 0, loc)
	return start, end
}

// spreadFlat fills [start, end) with equal 15-minute buckets, skipping
// travel days and re-weighting so the total is preserved.
func spreadFlat(start, end time.Time, totalKWh float64, travel []TravelRange) []Interval {
	var slots []time.Time
	for t := start; t.Before(end); t = t.Add(normalizeIntervalMinutes * time.Minute) {
		if inTravel(t, travel) {
			continue
		}
		slots = append(slots, t)
	}
	if len(slots) == 0 || totalKWh == 0 {
		return nil
	}
	per := totalKWh / float64(len(slots))
	out := make([]Interval, 0, len(slots))
	for _, t := range slots {
		out = append(out, Interval{Timestamp: t, KWh: per, Minutes: normalizeIntervalMinutes})
	}
	return out
}

func inTravel(t time.Time, travel []TravelRange) bool {
	for _, r := range travel {
		if r.contains(t) {
			return true
		}
	}
	return false
}
