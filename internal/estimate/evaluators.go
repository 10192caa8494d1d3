package estimate

import (
	"fmt"
	"math"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
	"github.com/bllfield/intelliwatt-costengine/internal/rateplan"
)

// The evaluators are pure functions from (rate structure slice, one month's
// buckets) to cents. The estimator calls them in a fixed order per month:
// base shape, then credits, then minimum rules, because minimum rules are
// applied to the subtotal of everything before them.

// MonthUsage is one month's resolved bucket row as the evaluators see it.
type MonthUsage struct {
	YearMonth string
	Buckets   map[string]float64
	Stitched  bool
}

// AllTotalKWh returns the all-hours total for the month.
func (m MonthUsage) AllTotalKWh() float64 {
	return m.Buckets[bucket.AllTotal.String()]
}

// centsFor converts usage at a cents-per-kWh rate into integer cents,
// rounding half away from zero once per component.
func centsFor(kwh, centsPerKWh float64) Cents {
	return Cents(math.Round(kwh * centsPerKWh))
}

// dollarsToCents converts a dollar figure into integer cents.
func dollarsToCents(d float64) Cents {
	return Cents(math.Round(d * 100))
}

// evalFixed prices the month at a flat energy rate.
func evalFixed(centsPerKWh float64, m MonthUsage) Cents {
	return centsFor(m.AllTotalKWh(), centsPerKWh)
}

// evalTiered bills all-hours usage through contiguous marginal bands. The
// schedule was validated at construction; bands here are trusted to be
// in order with an unbounded top.
func evalTiered(sched *rateplan.TieredSchedule, m MonthUsage) Cents {
	remaining := m.AllTotalKWh()
	prev := 0.0
	var total Cents
	for _, tier := range sched.Tiers {
		if remaining <= 0 {
			break
		}
		var band float64
		if tier.UpToKWh == nil {
			band = remaining
		} else {
			band = math.Min(remaining, *tier.UpToKWh-prev)
			prev = *tier.UpToKWh
		}
		total += centsFor(band, tier.CentsPerKWh)
		remaining -= band
	}
	return total
}

// evalTimeOfUse prices each period against its bucket and verifies the
// period kWh reconcile with the all-hours total. A material mismatch is a
// distinct failure from missing data: the usage store handed back buckets
// that cannot all be true at once.
func evalTimeOfUse(periods []rateplan.TOUPeriod, m MonthUsage, epsilonKWh float64) (Cents, error) {
	var total Cents
	periodSum := 0.0
	seen := map[string]bool{}
	for _, p := range periods {
		key := p.Bucket().String()
		kwh, ok := m.Buckets[key]
		if !ok {
			return 0, fmt.Errorf("estimate: month %s missing bucket %s", m.YearMonth, key)
		}
		total += centsFor(kwh, p.EnergyCentsPerKWh)
		if !seen[key] {
			seen[key] = true
			periodSum += kwh
		}
	}
	if diff := math.Abs(periodSum - m.AllTotalKWh()); diff > epsilonKWh {
		return 0, &BucketSumMismatchError{
			YearMonth: m.YearMonth,
			PeriodKWh: periodSum,
			TotalKWh:  m.AllTotalKWh(),
		}
	}
	return total, nil
}

// BucketSumMismatchError carries the reconciliation failure detail.
type BucketSumMismatchError struct {
	YearMonth string
	PeriodKWh float64
	TotalKWh  float64
}

func (e *BucketSumMismatchError) Error() string {
	return fmt.Sprintf("estimate: month %s period sum %.3f kWh disagrees with all.total %.3f kWh",
		e.YearMonth, e.PeriodKWh, e.TotalKWh)
}

// evalCredits sums every satisfied credit rule as a negative contribution.
// Rules stack unless the structure marks them exclusive, in which case
// only the highest satisfied threshold applies.
func evalCredits(credits *rateplan.BillCredits, m MonthUsage) Cents {
	if credits == nil {
		return 0
	}
	kwh := m.AllTotalKWh()
	if credits.Exclusive {
		best := rateplan.BillCredit{MinUsageKWh: -1}
		for _, r := range credits.Rules {
			if kwh >= r.MinUsageKWh && r.MinUsageKWh > best.MinUsageKWh {
				best = r
			}
		}
		if best.MinUsageKWh < 0 {
			return 0
		}
		return -dollarsToCents(best.CreditDollars)
	}
	var total Cents
	for _, r := range credits.Rules {
		if kwh >= r.MinUsageKWh {
			total -= dollarsToCents(r.CreditDollars)
		}
	}
	return total
}

// applyMinimum evaluates minimum-usage rules against the month subtotal,
// returning the fee and top-up separately. The final month total is
// subtotal + fee + topUp, which realizes max(subtotal+fee, subtotal, floor)
// for whichever rule fired.
func applyMinimum(rules []rateplan.MinimumUsageRule, subtotal Cents, m MonthUsage) (fee, topUp Cents) {
	kwh := m.AllTotalKWh()
	for _, r := range rules {
		switch r.Kind {
		case rateplan.MinimumFee:
			if kwh < r.FloorKWh {
				fee += dollarsToCents(r.FeeDollars)
			}
		case rateplan.MinimumBill:
			floor := dollarsToCents(r.FloorDollars)
			if subtotal+fee+topUp < floor {
				topUp = floor - subtotal - fee
			}
		}
	}
	return fee, topUp
}
