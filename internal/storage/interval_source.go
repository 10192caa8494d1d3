package storage

import (
	"context"
	"time"

	"github.com/bllfield/intelliwatt-costengine/internal/usage"
)

// minutesPerDay marks a reading that covers a whole day. Day-level readings
// share the interval table; the Minutes column tells them apart.
const minutesPerDay = 24 * 60

// IntervalSource adapts a Storage into the usage builder's Source contract.
type IntervalSource struct {
	st Storage
}

func NewIntervalSource(st Storage) *IntervalSource {
	return &IntervalSource{st: st}
}

func (s *IntervalSource) QueryIntervals(ctx context.Context, meterID string, from, to time.Time) ([]usage.Interval, error) {
	rows, err := s.st.QueryIntervalReadings(ctx, meterID, from, to)
	if err != nil {
		return nil, err
	}
	var out []usage.Interval
	for _, r := range rows {
		if r.Minutes >= minutesPerDay {
			continue
		}
		out = append(out, usage.Interval{Timestamp: r.Timestamp, KWh: r.KWh, Minutes: r.Minutes})
	}
	return out, nil
}

func (s *IntervalSource) QueryDailyTotals(ctx context.Context, meterID string, from, to time.Time) ([]usage.DailyTotal, error) {
	rows, err := s.st.QueryIntervalReadings(ctx, meterID, from, to)
	if err != nil {
		return nil, err
	}
	var out []usage.DailyTotal
	for _, r := range rows {
		if r.Minutes < minutesPerDay {
			continue
		}
		out = append(out, usage.DailyTotal{Date: r.Timestamp, KWh: r.KWh})
	}
	return out, nil
}

func (s *IntervalSource) LatestTimestamp(ctx context.Context, meterID string) (time.Time, error) {
	return s.st.LatestIntervalTimestamp(ctx, meterID)
}
