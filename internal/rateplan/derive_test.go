package rateplan

import (
	"testing"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
)

func TestRequiredBucketsFixed(t *testing.T) {
	s := &Structure{Type: RateFixed, EnergyCentsPerKWh: 11.2}
	rbs, err := RequiredBuckets(s)
	if err != nil {
		t.Fatalf("RequiredBuckets failed: %v", err)
	}
	if len(rbs) != 1 || rbs[0].Key != bucket.AllTotal {
		t.Fatalf("FIXED should require only all.total, got %+v", rbs)
	}
	if rbs[0].Label != "All hours" {
		t.Fatalf("unexpected label %q", rbs[0].Label)
	}
}

func TestRequiredBucketsVariable(t *testing.T) {
	s := &Structure{Type: RateVariable}
	keys, err := RequiredKeys(s)
	if err != nil {
		t.Fatalf("RequiredKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != bucket.AllTotal {
		t.Fatalf("VARIABLE should require only all.total, got %+v", keys)
	}
}

func TestRequiredBucketsTOU(t *testing.T) {
	s := &Structure{
		Type: RateTimeOfUse,
		Periods: []TOUPeriod{
			{Label: "day", DayType: bucket.DayAll, StartMinute: 7 * 60, EndMinute: 20 * 60, EnergyCentsPerKWh: 10},
			{Label: "night", DayType: bucket.DayAll, StartMinute: 20 * 60, EndMinute: 7 * 60, EnergyCentsPerKWh: 6},
			// Duplicate window: must not produce a duplicate bucket.
			{Label: "night-dup", DayType: bucket.DayAll, StartMinute: 20 * 60, EndMinute: 7 * 60, EnergyCentsPerKWh: 6},
		},
	}
	keys, err := RequiredKeys(s)
	if err != nil {
		t.Fatalf("RequiredKeys failed: %v", err)
	}
	want := []string{"kwh.m.all.total", "kwh.m.all.0700-2000", "kwh.m.all.2000-0700"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %+v", len(want), len(keys), keys)
	}
	for i, w := range want {
		if keys[i].String() != w {
			t.Fatalf("key %d = %q, want %q", i, keys[i].String(), w)
		}
	}
}

func TestAugmentationsAddNoBuckets(t *testing.T) {
	s := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 9.8,
		Tiered: &TieredSchedule{Tiers: []Tier{
			{UpToKWh: f64(500), CentsPerKWh: 9},
			{CentsPerKWh: 12},
		}},
		Credits:      &BillCredits{Rules: []BillCredit{{MinUsageKWh: 1000, CreditDollars: 50}}},
		MinimumUsage: []MinimumUsageRule{{Kind: MinimumBill, FloorDollars: 25}},
	}
	keys, err := RequiredKeys(s)
	if err != nil {
		t.Fatalf("RequiredKeys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("augmentations must not add bucket keys, got %+v", keys)
	}
}
