package rateplan

import (
	"testing"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
)

func f64(v float64) *float64 { return &v }

func TestValidateFixed(t *testing.T) {
	s := &Structure{Type: RateFixed, EnergyCentsPerKWh: 12.5}
	if err := s.Validate(); err != nil {
		t.Fatalf("valid fixed structure rejected: %v", err)
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	s := &Structure{Type: "SEASONAL"}
	if err := s.Validate(); err == nil {
		t.Fatalf("unknown type should fail validation")
	}
}

func TestValidateRejectsMixedShapes(t *testing.T) {
	s := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 10,
		Periods: []TOUPeriod{
			{DayType: bucket.DayAll, StartMinute: 0, EndMinute: 480, EnergyCentsPerKWh: 5},
		},
	}
	if err := s.Validate(); err == nil {
		t.Fatalf("FIXED with TOU periods should fail validation")
	}
}

func TestValidateTiersOutOfOrder(t *testing.T) {
	s := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 10,
		Tiered: &TieredSchedule{Tiers: []Tier{
			{UpToKWh: f64(1000), CentsPerKWh: 10},
			{UpToKWh: f64(500), CentsPerKWh: 12},
			{CentsPerKWh: 14},
		}},
	}
	if err := s.Validate(); err == nil {
		t.Fatalf("out-of-order tier thresholds should fail validation")
	}
}

func TestValidateTiersTopMustBeUnbounded(t *testing.T) {
	s := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 10,
		Tiered: &TieredSchedule{Tiers: []Tier{
			{UpToKWh: f64(500), CentsPerKWh: 10},
			{UpToKWh: f64(1000), CentsPerKWh: 12},
		}},
	}
	if err := s.Validate(); err == nil {
		t.Fatalf("bounded top tier should fail validation")
	}
}

func TestValidateNegativeTierRate(t *testing.T) {
	s := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 10,
		Tiered:            &TieredSchedule{Tiers: []Tier{{CentsPerKWh: -1}}},
	}
	if err := s.Validate(); err == nil {
		t.Fatalf("negative tier rate should fail validation")
	}
}

func TestValidateMinimumRules(t *testing.T) {
	bad := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 10,
		MinimumUsage:      []MinimumUsageRule{{Kind: "SURCHARGE"}},
	}
	if err := bad.Validate(); err == nil {
		t.Fatalf("unknown minimum kind should fail validation")
	}
	good := &Structure{
		Type:              RateFixed,
		EnergyCentsPerKWh: 10,
		MinimumUsage: []MinimumUsageRule{
			{Kind: MinimumFee, FloorKWh: 500, FeeDollars: 9.95},
			{Kind: MinimumBill, FloorDollars: 35},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid minimum rules rejected: %v", err)
	}
}

func TestContentHashChangesWithContent(t *testing.T) {
	a := &Structure{Type: RateFixed, EnergyCentsPerKWh: 12.5}
	b := &Structure{Type: RateFixed, EnergyCentsPerKWh: 12.6}
	if a.ContentHash() == b.ContentHash() {
		t.Fatalf("different structures must hash differently")
	}
	if a.ContentHash() != (&Structure{Type: RateFixed, EnergyCentsPerKWh: 12.5}).ContentHash() {
		t.Fatalf("identical structures must hash identically")
	}
}
