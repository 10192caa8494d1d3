package bucket

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DayType selects which calendar days of a month a bucket covers.
type DayType string

const (
	DayAll     DayType = "all"
	DayWeekday DayType = "weekday"
	DayWeekend DayType = "weekend"
)

const (
	// MinutesPerDay is the exclusive upper bound for a window end.
	MinutesPerDay = 24 * 60

	keyPrefix = "kwh.m."
)

var (
	dayTypesMu sync.RWMutex
	dayTypes   = map[DayType]struct{}{
		DayAll:     {},
		DayWeekday: {},
		DayWeekend: {},
	}
)

// RegisterDayType adds a custom day-type to the set of accepted partitions.
// The built-in types cover every rate structure seen so far; holiday
// schedules from co-op plans are the known customer of this hook.
func RegisterDayType(dt DayType) error {
	s := string(dt)
	if s == "" || strings.ContainsAny(s, ".- ") || strings.ToLower(s) != s {
		return fmt.Errorf("bucket: invalid day-type %q", dt)
	}
	dayTypesMu.Lock()
	defer dayTypesMu.Unlock()
	dayTypes[dt] = struct{}{}
	return nil
}

func knownDayType(dt DayType) bool {
	dayTypesMu.RLock()
	defer dayTypesMu.RUnlock()
	_, ok := dayTypes[dt]
	return ok
}

// Key identifies a monthly usage partition: a day-type plus a half-open
// minute-of-day window. A window may wrap midnight (night periods such as
// 2000-0700). The full-day window is StartMinute=0, EndMinute=MinutesPerDay.
type Key struct {
	DayType     DayType
	StartMinute int
	EndMinute   int
}

// AllTotal is the all-hours bucket every rate shape consumes.
var AllTotal = Key{DayType: DayAll, StartMinute: 0, EndMinute: MinutesPerDay}

// FullDay reports whether the key covers the entire day.
func (k Key) FullDay() bool {
	return k.StartMinute == 0 && k.EndMinute == MinutesPerDay
}

// Wraps reports whether the window crosses midnight.
func (k Key) Wraps() bool {
	return k.EndMinute < k.StartMinute
}

// Contains reports whether the given minute-of-day falls inside the window.
func (k Key) Contains(minuteOfDay int) bool {
	if k.FullDay() {
		return true
	}
	if k.Wraps() {
		return minuteOfDay >= k.StartMinute || minuteOfDay < k.EndMinute
	}
	return minuteOfDay >= k.StartMinute && minuteOfDay < k.EndMinute
}

// MatchesDay reports whether the key's day-type covers the given weekday.
// Custom day-types match every day; their day predicate lives upstream in
// whatever registered them.
func (k Key) MatchesDay(wd time.Weekday) bool {
	switch k.DayType {
	case DayAll:
		return true
	case DayWeekday:
		return wd != time.Saturday && wd != time.Sunday
	case DayWeekend:
		return wd == time.Saturday || wd == time.Sunday
	default:
		return true
	}
}

// Validate checks the key parts without formatting.
func (k Key) Validate() error {
	if !knownDayType(k.DayType) {
		return fmt.Errorf("bucket: unknown day-type %q", k.DayType)
	}
	if k.StartMinute < 0 || k.StartMinute >= MinutesPerDay {
		return fmt.Errorf("bucket: start minute %d out of range", k.StartMinute)
	}
	if k.EndMinute < 0 || k.EndMinute > MinutesPerDay {
		return fmt.Errorf("bucket: end minute %d out of range", k.EndMinute)
	}
	if k.StartMinute == k.EndMinute {
		return fmt.Errorf("bucket: zero-length window %s", minutesToHHMM(k.StartMinute))
	}
	return nil
}

// String formats the canonical spelling. The full-day window is always
// spelled "total"; "0000-2400" is accepted on parse but never produced.
func (k Key) String() string {
	if k.FullDay() {
		return keyPrefix + string(k.DayType) + ".total"
	}
	return keyPrefix + string(k.DayType) + "." + minutesToHHMM(k.StartMinute) + "-" + minutesToHHMM(k.EndMinute)
}

// Label returns a human-readable description used in derived bucket lists.
func (k Key) Label() string {
	day := ""
	switch k.DayType {
	case DayAll:
		day = "All days"
	case DayWeekday:
		day = "Weekdays"
	case DayWeekend:
		day = "Weekends"
	default:
		s := string(k.DayType)
		day = strings.ToUpper(s[:1]) + s[1:] + " days"
	}
	if k.FullDay() {
		if k.DayType == DayAll {
			return "All hours"
		}
		return day + ", all hours"
	}
	return fmt.Sprintf("%s %s-%s", day, minutesToHHMM(k.StartMinute), minutesToHHMM(k.EndMinute))
}

// Parse decodes a bucket key string. Parsing is total: anything that is not
// a well-formed key is an error, never coerced. Alias spellings of the
// full-day window ("0000-2400") are accepted; Parse returns the canonical
// Key for them.
func Parse(s string) (Key, error) {
	if !strings.HasPrefix(s, keyPrefix) {
		return Key{}, fmt.Errorf("bucket: key %q missing %q prefix", s, keyPrefix)
	}
	rest := s[len(keyPrefix):]
	parts := strings.Split(rest, ".")
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("bucket: key %q must have day-type and window segments", s)
	}
	dt := DayType(parts[0])
	if !knownDayType(dt) {
		return Key{}, fmt.Errorf("bucket: unknown day-type %q in key %q", parts[0], s)
	}

	window := parts[1]
	if window == "total" {
		return Key{DayType: dt, StartMinute: 0, EndMinute: MinutesPerDay}, nil
	}

	dash := strings.IndexByte(window, '-')
	if dash != 4 || len(window) != 9 {
		return Key{}, fmt.Errorf("bucket: window %q in key %q is not HHMM-HHMM", window, s)
	}
	start, err := hhmmToMinutes(window[:4], false)
	if err != nil {
		return Key{}, fmt.Errorf("bucket: key %q: %w", s, err)
	}
	end, err := hhmmToMinutes(window[5:], true)
	if err != nil {
		return Key{}, fmt.Errorf("bucket: key %q: %w", s, err)
	}
	k := Key{DayType: dt, StartMinute: start, EndMinute: end}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// MustParse is Parse for compile-time-constant keys in tests and tables.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

func hhmmToMinutes(s string, allowMidnightEnd bool) (int, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("clock %q is not 4 digits", s)
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("clock %q is not 4 digits", s)
		}
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[2]-'0')*10 + int(s[3]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("clock %q has invalid minutes", s)
	}
	min := hh*60 + mm
	if s == "2400" {
		if allowMidnightEnd {
			return MinutesPerDay, nil
		}
		return 0, fmt.Errorf("clock 2400 is only valid as a window end")
	}
	if hh > 23 {
		return 0, fmt.Errorf("clock %q has invalid hours", s)
	}
	return min, nil
}

func minutesToHHMM(m int) string {
	if m == MinutesPerDay {
		return "2400"
	}
	return fmt.Sprintf("%02d%02d", m/60, m%60)
}

// Dedupe returns keys in first-seen order with duplicates removed.
func Dedupe(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// SortedStrings is a stable string rendering used when hashing bucket sets.
func SortedStrings(keys []Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}
