package usage

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
)

// Unresolvable reasons attached to month rows.
const (
	ReasonAliasDisagreement = "alias_disagreement"
	ReasonMissingBucket     = "missing_bucket"
	ReasonIncompleteMonth   = "incomplete_coverage"
)

// Config carries the builder's tunables. The epsilon defaults come from the
// production system and are configurable rather than hard invariants.
type Config struct {
	// Location is the service-territory local calendar. Day boundaries for
	// day/night and weekday/weekend splits must use local time, because
	// that is what a rate structure's clock times mean.
	Location *time.Location
	// AliasEpsilonKWh bounds acceptable disagreement between spellings of
	// the same monthly bucket.
	AliasEpsilonKWh float64
}

// DefaultConfig returns the production defaults (ERCOT territory).
func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		loc = time.UTC
	}
	return Config{Location: loc, AliasEpsilonKWh: 0.5}
}

// Request describes one bucket build.
type Request struct {
	HomeID  string
	MeterID string
	// WindowEnd is the newest timestamp of available raw data. Zero means
	// "ask the source". The builder never reads past it.
	WindowEnd time.Time
	// MonthsCount trailing calendar months ending at WindowEnd's month.
	// Zero defaults to 12.
	MonthsCount  int
	RequiredKeys []bucket.Key
}

// MonthRow is one month of bucketed usage. Rows are built fresh on every
// call and never mutated afterwards.
type MonthRow struct {
	YearMonth string             `json:"yearMonth"`
	Buckets   map[string]float64 `json:"buckets"`

	// Stitched marks a head month whose missing tail days were borrowed
	// from the same calendar days one year prior.
	Stitched        bool   `json:"stitched,omitempty"`
	StitchedFrom    string `json:"stitchedFrom,omitempty"`
	StitchedThrough string `json:"stitchedThrough,omitempty"`

	Unresolvable       bool   `json:"unresolvable,omitempty"`
	UnresolvableReason string `json:"unresolvableReason,omitempty"`
}

// Result is a complete month-by-month usage table for the requested keys.
type Result struct {
	// YearMonths lists every requested month oldest-first, resolvable or
	// not; Rows holds the per-month detail.
	YearMonths []string            `json:"yearMonths"`
	Rows       map[string]MonthRow `json:"usageBucketsByMonth"`
	// AnnualKWh sums all.total across resolvable months. Nil when no month
	// resolved; callers must then treat any estimate as not computable.
	AnnualKWh *float64       `json:"annualKwh"`
	Coverage  CoverageReport `json:"coverage"`
}

// CoverageReport lets callers decide whether to request a backfill.
type CoverageReport struct {
	MonthsRequested    int      `json:"monthsRequested"`
	MonthsResolved     int      `json:"monthsResolved"`
	MissingMonths      []string `json:"missingMonths,omitempty"`
	UnresolvableMonths []string `json:"unresolvableMonths,omitempty"`
}

// Complete reports whether every requested month resolved.
func (c CoverageReport) Complete() bool {
	return c.MonthsRequested > 0 && c.MonthsResolved == c.MonthsRequested
}

// Builder turns raw interval/daily rows into monthly usage buckets.
type Builder struct {
	src   Source
	cache MonthlyCache // may be nil
	cfg   Config
	log   *zap.Logger
}

func NewBuilder(src Source, cache MonthlyCache, cfg Config, log *zap.Logger) *Builder {
	if cfg.Location == nil {
		cfg.Location = DefaultConfig().Location
	}
	if cfg.AliasEpsilonKWh <= 0 {
		cfg.AliasEpsilonKWh = DefaultConfig().AliasEpsilonKWh
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{src: src, cache: cache, cfg: cfg, log: log}
}

// Build produces the monthly usage table. It is read-only: no backfill is
// triggered here regardless of coverage.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if len(req.RequiredKeys) == 0 {
		return nil, fmt.Errorf("usage: no required bucket keys")
	}
	keys := bucket.Dedupe(append([]bucket.Key{bucket.AllTotal}, req.RequiredKeys...))
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return nil, err
		}
	}

	windowEnd := req.WindowEnd
	if windowEnd.IsZero() {
		latest, err := b.src.LatestTimestamp(ctx, req.MeterID)
		if err != nil {
			return nil, fmt.Errorf("usage: latest timestamp: %w", err)
		}
		windowEnd = latest
	}
	windowEnd = windowEnd.In(b.cfg.Location)

	monthsCount := req.MonthsCount
	if monthsCount <= 0 {
		monthsCount = 12
	}
	yearMonths := trailingMonths(windowEnd, monthsCount)

	cutoff := windowEnd.AddDate(0, 0, -365)
	intervals, err := b.src.QueryIntervals(ctx, req.MeterID, cutoff, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("usage: query intervals: %w", err)
	}

	agg := newAggregate(keys, b.cfg.Location)
	for _, iv := range intervals {
		if iv.Timestamp.After(windowEnd) {
			// Future leakage guard; the source should not hand these back.
			continue
		}
		agg.add(iv)
	}

	if len(intervals) == 0 {
		// Meters without interval data still report day totals, which can
		// fill full-day buckets (enough for fixed and tiered plans).
		dailies, derr := b.src.QueryDailyTotals(ctx, req.MeterID, cutoff, windowEnd)
		if derr != nil {
			return nil, fmt.Errorf("usage: query daily totals: %w", derr)
		}
		for _, d := range dailies {
			if d.Date.After(windowEnd) {
				continue
			}
			agg.addDaily(d)
		}
	}

	var cached map[string]map[string]float64
	if b.cache != nil {
		cached, err = b.cache.QueryMonthlyBuckets(ctx, req.HomeID, yearMonths)
		if err != nil {
			return nil, fmt.Errorf("usage: query monthly cache: %w", err)
		}
	}

	res := &Result{
		YearMonths: yearMonths,
		Rows:       make(map[string]MonthRow, len(yearMonths)),
	}
	res.Coverage.MonthsRequested = len(yearMonths)

	headYM := yearMonths[len(yearMonths)-1]
	annual := 0.0
	resolvedAny := false

	for _, ym := range yearMonths {
		row := b.resolveMonth(ym, ym == headYM, windowEnd, keys, agg, cached[ym])
		res.Rows[ym] = row
		switch {
		case row.Unresolvable:
			res.Coverage.UnresolvableMonths = append(res.Coverage.UnresolvableMonths, ym)
		case row.Buckets == nil:
			res.Coverage.MissingMonths = append(res.Coverage.MissingMonths, ym)
		default:
			res.Coverage.MonthsResolved++
			annual += row.Buckets[bucket.AllTotal.String()]
			resolvedAny = true
		}
	}
	if resolvedAny {
		res.AnnualKWh = &annual
	}

	b.log.Debug("usage buckets built",
		zap.String("home_id", req.HomeID),
		zap.String("meter_id", req.MeterID),
		zap.Int("months_requested", res.Coverage.MonthsRequested),
		zap.Int("months_resolved", res.Coverage.MonthsResolved),
	)
	return res, nil
}

// resolveMonth assembles one month row from fresh aggregation, stitching,
// and the monthly cache, in that order of trust.
func (b *Builder) resolveMonth(ym string, isHead bool, windowEnd time.Time, keys []bucket.Key, agg *aggregate, cachedRow map[string]float64) MonthRow {
	row := MonthRow{YearMonth: ym}

	year, month := splitYearMonth(ym)
	daysInMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, b.cfg.Location).Day()
	covered := agg.daysCovered(ym)

	fullFromIntervals := covered >= daysInMonth
	values := map[string]float64{}

	if fullFromIntervals {
		for _, k := range keys {
			values[k.String()] = agg.value(ym, k)
		}
	} else if isHead && covered > 0 && windowEnd.Day() < daysInMonth {
		// Stitching: borrow the missing tail days from the same calendar
		// days one year prior. Seasonal-shape bias is the accepted
		// trade-off versus dropping the month entirely.
		stitchFrom := time.Date(year-1, time.Month(month), windowEnd.Day()+1, 0, 0, 0, 0, b.cfg.Location)
		stitchThrough := time.Date(year-1, time.Month(month), daysInMonth, 0, 0, 0, 0, b.cfg.Location)
		borrowed, ok := agg.dayRange(stitchFrom, stitchThrough, keys)
		if ok {
			for _, k := range keys {
				values[k.String()] = agg.value(ym, k) + borrowed[k.String()]
			}
			row.Stitched = true
			row.StitchedFrom = stitchFrom.Format("2006-01-02")
			row.StitchedThrough = stitchThrough.Format("2006-01-02")
		}
	}

	if len(values) == 0 {
		// No usable fresh aggregation; fall back to the monthly cache row.
		if len(cachedRow) == 0 {
			if covered > 0 {
				row.Unresolvable = true
				row.UnresolvableReason = ReasonIncompleteMonth
			}
			return row
		}
		for _, k := range keys {
			resv, err := bucket.Resolve(cachedRow, k, b.cfg.AliasEpsilonKWh)
			if err != nil {
				row.Unresolvable = true
				row.UnresolvableReason = ReasonAliasDisagreement
				return row
			}
			if !resv.Found {
				row.Unresolvable = true
				row.UnresolvableReason = ReasonMissingBucket
				return row
			}
			values[k.String()] = resv.KWh
		}
		row.Buckets = values
		return row
	}

	// Fresh aggregation exists. A cached row that materially contradicts
	// it is the alias-disagreement case: refuse to guess.
	if len(cachedRow) > 0 {
		merged := make(map[string]float64, len(cachedRow)+len(values))
		for spelling, v := range cachedRow {
			merged[spelling] = v
		}
		allKey := bucket.AllTotal.String()
		merged[allKey] = values[allKey]
		if _, err := bucket.Resolve(merged, bucket.AllTotal, b.cfg.AliasEpsilonKWh); err != nil {
			row.Unresolvable = true
			row.UnresolvableReason = ReasonAliasDisagreement
			return row
		}
	}

	row.Buckets = values
	return row
}

// aggregate accumulates kWh per (yearMonth, key) in the local calendar.
type aggregate struct {
	loc    *time.Location
	keys   []bucket.Key
	sums   map[string]map[string]float64
	days   map[string]map[int]struct{}
	daySum map[string]map[string]float64 // "YYYY-MM-DD" -> key -> kWh
}

func newAggregate(keys []bucket.Key, loc *time.Location) *aggregate {
	return &aggregate{
		loc:    loc,
		keys:   keys,
		sums:   make(map[string]map[string]float64),
		days:   make(map[string]map[int]struct{}),
		daySum: make(map[string]map[string]float64),
	}
}

func (a *aggregate) add(iv Interval) {
	t := iv.Timestamp.In(a.loc)
	ym := t.Format("2006-01")
	day := t.Format("2006-01-02")
	minute := t.Hour()*60 + t.Minute()
	wd := t.Weekday()

	if a.days[ym] == nil {
		a.days[ym] = make(map[int]struct{})
	}
	a.days[ym][t.Day()] = struct{}{}

	for _, k := range a.keys {
		if !k.MatchesDay(wd) || !k.Contains(minute) {
			continue
		}
		ks := k.String()
		if a.sums[ym] == nil {
			a.sums[ym] = make(map[string]float64)
		}
		a.sums[ym][ks] += iv.KWh
		if a.daySum[day] == nil {
			a.daySum[day] = make(map[string]float64)
		}
		a.daySum[day][ks] += iv.KWh
	}
}

// addDaily folds a day total into full-day buckets only; a day-level
// reading cannot be split across clock windows.
func (a *aggregate) addDaily(d DailyTotal) {
	t := d.Date.In(a.loc)
	ym := t.Format("2006-01")
	day := t.Format("2006-01-02")
	wd := t.Weekday()

	if a.days[ym] == nil {
		a.days[ym] = make(map[int]struct{})
	}
	a.days[ym][t.Day()] = struct{}{}

	for _, k := range a.keys {
		if !k.FullDay() || !k.MatchesDay(wd) {
			continue
		}
		ks := k.String()
		if a.sums[ym] == nil {
			a.sums[ym] = make(map[string]float64)
		}
		a.sums[ym][ks] += d.KWh
		if a.daySum[day] == nil {
			a.daySum[day] = make(map[string]float64)
		}
		a.daySum[day][ks] += d.KWh
	}
}

func (a *aggregate) daysCovered(ym string) int {
	return len(a.days[ym])
}

func (a *aggregate) value(ym string, k bucket.Key) float64 {
	return a.sums[ym][k.String()]
}

// dayRange sums per-key kWh over an inclusive local-date range, reporting
// whether every day in the range had data.
func (a *aggregate) dayRange(from, through time.Time, keys []bucket.Key) (map[string]float64, bool) {
	out := make(map[string]float64, len(keys))
	for d := from; !d.After(through); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		sums, ok := a.daySum[day]
		if !ok {
			return nil, false
		}
		for _, k := range keys {
			out[k.String()] += sums[k.String()]
		}
	}
	return out, true
}

// trailingMonths returns n "YYYY-MM" strings oldest-first ending at t's month.
func trailingMonths(t time.Time, n int) []string {
	out := make([]string, n)
	y, m := t.Year(), int(t.Month())
	for i := n - 1; i >= 0; i-- {
		out[i] = fmt.Sprintf("%04d-%02d", y, m)
		m--
		if m == 0 {
			m = 12
			y--
		}
	}
	return out
}

func splitYearMonth(ym string) (int, int) {
	var y, m int
	fmt.Sscanf(ym, "%d-%d", &y, &m)
	return y, m
}

// RoundKWh rounds a bucket value to display precision. Calculations always
// use the exact value; this is for externally reported figures only.
func RoundKWh(v float64) float64 {
	return math.Round(v*1000) / 1000
}
