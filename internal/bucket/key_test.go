package bucket

import (
	"testing"
	"time"
)

func TestParseFormatRoundTrip(t *testing.T) {
	canonical := []string{
		"kwh.m.all.total",
		"kwh.m.weekday.total",
		"kwh.m.weekend.total",
		"kwh.m.all.0700-2000",
		"kwh.m.all.2000-0700",
		"kwh.m.weekday.0600-0900",
		"kwh.m.weekend.1200-1800",
	}
	for _, s := range canonical {
		k, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", s, err)
		}
		if got := k.String(); got != s {
			t.Fatalf("round-trip mismatch: Parse(%q).String() = %q", s, got)
		}
	}
}

func TestParseFullDayAlias(t *testing.T) {
	k, err := Parse("kwh.m.all.0000-2400")
	if err != nil {
		t.Fatalf("Parse alias failed: %v", err)
	}
	if !k.FullDay() {
		t.Fatalf("expected full-day key, got %+v", k)
	}
	// Alias accepted on input, canonical spelling on output.
	if got := k.String(); got != "kwh.m.all.total" {
		t.Fatalf("expected canonical total spelling, got %q", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"kwh.m.all",
		"kwh.m.all.total.extra",
		"kwh.y.all.total",
		"kwh.m.holiday.total",
		"kwh.m.all.700-2000",
		"kwh.m.all.0700-2000x",
		"kwh.m.all.0760-2000",
		"kwh.m.all.2500-0100",
		"kwh.m.all.2400-0600",
		"kwh.m.all.0700-0700",
		"kwh.m.all.07002000",
	}
	for _, s := range bad {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q) should have failed", s)
		}
	}
}

func TestContainsWrapAround(t *testing.T) {
	night := MustParse("kwh.m.all.2000-0700")
	cases := []struct {
		minute int
		want   bool
	}{
		{0, true},
		{6*60 + 59, true},
		{7 * 60, false},
		{12 * 60, false},
		{19*60 + 59, false},
		{20 * 60, true},
		{23*60 + 59, true},
	}
	for _, c := range cases {
		if got := night.Contains(c.minute); got != c.want {
			t.Fatalf("Contains(%d) = %v, want %v", c.minute, got, c.want)
		}
	}
}

func TestMatchesDay(t *testing.T) {
	wk := MustParse("kwh.m.weekday.total")
	we := MustParse("kwh.m.weekend.total")
	if !wk.MatchesDay(time.Wednesday) || wk.MatchesDay(time.Saturday) {
		t.Fatalf("weekday predicate wrong")
	}
	if !we.MatchesDay(time.Sunday) || we.MatchesDay(time.Friday) {
		t.Fatalf("weekend predicate wrong")
	}
	if !AllTotal.MatchesDay(time.Saturday) {
		t.Fatalf("all should match every day")
	}
}

func TestResolvePrefersCanonical(t *testing.T) {
	values := map[string]float64{
		"kwh.m.all.total":     900.0,
		"kwh.m.all.0000-2400": 900.2,
	}
	res, err := Resolve(values, AllTotal, 0.5)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.KWh != 900.0 || res.SpelledAs != "kwh.m.all.total" {
		t.Fatalf("expected canonical value, got %+v", res)
	}
}

func TestResolveLoneAlias(t *testing.T) {
	values := map[string]float64{"kwh.m.all.0000-2400": 812.5}
	res, err := Resolve(values, AllTotal, 0.5)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.KWh != 812.5 {
		t.Fatalf("expected alias value, got %+v", res)
	}
}

func TestResolveDisagreementBeyondEpsilon(t *testing.T) {
	values := map[string]float64{
		"kwh.m.all.total":     900.0,
		"kwh.m.all.0000-2400": 950.0,
	}
	_, err := Resolve(values, AllTotal, 0.5)
	if err == nil {
		t.Fatalf("expected disagreement error")
	}
	if _, ok := err.(*ErrAliasDisagreement); !ok {
		t.Fatalf("expected ErrAliasDisagreement, got %T", err)
	}
}

func TestResolveMissing(t *testing.T) {
	res, err := Resolve(map[string]float64{}, AllTotal, 0.5)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Found {
		t.Fatalf("expected not found, got %+v", res)
	}
}
