package rateplan

import (
	"fmt"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
)

// RateType discriminates the base pricing shape. Exactly one base shape is
// active per structure; tiers, credits, and minimum-usage rules are
// additive augmentations on top of it.
type RateType string

const (
	RateFixed     RateType = "FIXED"
	RateVariable  RateType = "VARIABLE"
	RateIndexed   RateType = "INDEXED"
	RateTimeOfUse RateType = "TIME_OF_USE"
)

// Deterministic reports whether the shape can be forward-priced. Variable
// and indexed plans only define the current bill, so a 12-month estimate
// is not computable for them.
func (t RateType) Deterministic() bool {
	return t == RateFixed || t == RateTimeOfUse
}

// TOUPeriod is one time-of-use pricing window.
type TOUPeriod struct {
	Label             string         `json:"label,omitempty"`
	DayType           bucket.DayType `json:"dayType"`
	StartMinute       int            `json:"startMinute"`
	EndMinute         int            `json:"endMinute"`
	EnergyCentsPerKWh float64        `json:"energyCentsPerKwh"`
}

// Bucket returns the usage bucket key this period is billed against.
func (p TOUPeriod) Bucket() bucket.Key {
	return bucket.Key{DayType: p.DayType, StartMinute: p.StartMinute, EndMinute: p.EndMinute}
}

// Tier is one marginal band of a tiered schedule. UpToKWh is the inclusive
// upper usage bound of the band; nil marks the unbounded top band.
type Tier struct {
	UpToKWh     *float64 `json:"upToKwh,omitempty"`
	CentsPerKWh float64  `json:"centsPerKwh"`
}

// TieredSchedule bills all-hours usage in contiguous marginal bands.
type TieredSchedule struct {
	Tiers []Tier `json:"tiers"`
}

// BillCredit grants a dollar credit when monthly usage reaches the
// threshold. Multiple satisfied rules stack unless Exclusive is set on the
// parent, in which case only the highest satisfied threshold applies.
type BillCredit struct {
	MinUsageKWh   float64 `json:"minUsageKwh"`
	CreditDollars float64 `json:"creditDollars"`
}

type BillCredits struct {
	Rules     []BillCredit `json:"rules"`
	Exclusive bool         `json:"exclusive,omitempty"`
}

// MinimumKind selects how a minimum-usage rule adjusts the bill.
type MinimumKind string

const (
	// MinimumFee adds a flat surcharge when usage is under the floor.
	MinimumFee MinimumKind = "FEE"
	// MinimumBill raises the month subtotal to a dollar floor.
	MinimumBill MinimumKind = "BILL"
)

type MinimumUsageRule struct {
	Kind MinimumKind `json:"kind"`
	// FloorKWh is the usage floor for FEE rules.
	FloorKWh float64 `json:"floorKwh,omitempty"`
	// FeeDollars is the surcharge for FEE rules.
	FeeDollars float64 `json:"feeDollars,omitempty"`
	// FloorDollars is the bill floor for BILL rules.
	FloorDollars float64 `json:"floorDollars,omitempty"`
}

// Structure is the parsed rate structure for one retail plan, the unit the
// EFL extraction pipeline produces and this engine consumes.
type Structure struct {
	Type RateType `json:"type"`

	// EnergyCentsPerKWh is the flat energy rate for FIXED plans.
	EnergyCentsPerKWh float64 `json:"energyCentsPerKwh,omitempty"`

	// AnchorCentsPerKWh is the EFL sample-point price for VARIABLE/INDEXED
	// plans. It anchors the opt-in approximation mode only.
	AnchorCentsPerKWh *float64 `json:"anchorCentsPerKwh,omitempty"`

	// Periods define TIME_OF_USE pricing windows.
	Periods []TOUPeriod `json:"periods,omitempty"`

	Tiered       *TieredSchedule    `json:"tieredSchedule,omitempty"`
	Credits      *BillCredits       `json:"billCredits,omitempty"`
	MinimumUsage []MinimumUsageRule `json:"minimumUsageRules,omitempty"`

	// DeliveryIncluded marks plans whose energy rate already folds in TDSP
	// delivery charges.
	DeliveryIncluded bool `json:"deliveryIncluded,omitempty"`
}

// Validate enforces the shape invariants at construction time so invalid
// combinations never reach an evaluator. Violations are programmer-visible
// errors: the upstream producer must be fixed, not retried.
func (s *Structure) Validate() error {
	switch s.Type {
	case RateFixed:
		if s.EnergyCentsPerKWh < 0 {
			return fmt.Errorf("rateplan: negative energy rate %.4f", s.EnergyCentsPerKWh)
		}
		if len(s.Periods) > 0 {
			return fmt.Errorf("rateplan: FIXED structure must not carry TOU periods")
		}
	case RateVariable, RateIndexed:
		if len(s.Periods) > 0 {
			return fmt.Errorf("rateplan: %s structure must not carry TOU periods", s.Type)
		}
		if s.AnchorCentsPerKWh != nil && *s.AnchorCentsPerKWh < 0 {
			return fmt.Errorf("rateplan: negative anchor rate")
		}
	case RateTimeOfUse:
		if len(s.Periods) == 0 {
			return fmt.Errorf("rateplan: TIME_OF_USE structure requires at least one period")
		}
		if s.EnergyCentsPerKWh != 0 {
			return fmt.Errorf("rateplan: TIME_OF_USE structure must not carry a flat energy rate")
		}
		for i, p := range s.Periods {
			if p.EnergyCentsPerKWh < 0 {
				return fmt.Errorf("rateplan: period %d has negative rate", i)
			}
			if err := p.Bucket().Validate(); err != nil {
				return fmt.Errorf("rateplan: period %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("rateplan: unknown rate type %q", s.Type)
	}

	if s.Tiered != nil {
		if err := validateTiers(s.Tiered.Tiers); err != nil {
			return err
		}
	}
	if s.Credits != nil {
		for i, r := range s.Credits.Rules {
			if r.MinUsageKWh < 0 {
				return fmt.Errorf("rateplan: credit rule %d has negative threshold", i)
			}
		}
	}
	for i, r := range s.MinimumUsage {
		switch r.Kind {
		case MinimumFee:
			if r.FloorKWh <= 0 || r.FeeDollars < 0 {
				return fmt.Errorf("rateplan: minimum-fee rule %d malformed", i)
			}
		case MinimumBill:
			if r.FloorDollars <= 0 {
				return fmt.Errorf("rateplan: minimum-bill rule %d malformed", i)
			}
		default:
			return fmt.Errorf("rateplan: minimum rule %d has unknown kind %q", i, r.Kind)
		}
	}
	return nil
}

// validateTiers enforces contiguous, non-overlapping bands with an
// unbounded top band. Thresholds must be positive and strictly increasing;
// out-of-order input is an error, never clamped at runtime.
func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("rateplan: tiered schedule has no tiers")
	}
	prev := 0.0
	for i, t := range tiers {
		if t.CentsPerKWh < 0 {
			return fmt.Errorf("rateplan: tier %d has negative rate", i)
		}
		last := i == len(tiers)-1
		if last {
			if t.UpToKWh != nil {
				return fmt.Errorf("rateplan: top tier must be unbounded")
			}
			continue
		}
		if t.UpToKWh == nil {
			return fmt.Errorf("rateplan: tier %d is unbounded but not the top tier", i)
		}
		if *t.UpToKWh <= prev {
			return fmt.Errorf("rateplan: tier %d threshold %.2f not above previous %.2f", i, *t.UpToKWh, prev)
		}
		prev = *t.UpToKWh
	}
	return nil
}
