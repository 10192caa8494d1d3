package estimate

import (
	"errors"
	"fmt"

	"github.com/bllfield/intelliwatt-costengine/internal/rateplan"
	"github.com/bllfield/intelliwatt-costengine/internal/tdsp"
	"github.com/bllfield/intelliwatt-costengine/internal/usage"
)

// Config carries the estimator's tunables. The epsilon default matches the
// bucket builder's; they are deliberately configurable, not invariants.
type Config struct {
	// SumEpsilonKWh bounds the time-of-use reconciliation check.
	SumEpsilonKWh float64
	// VersionTag identifies the estimator revision; it participates in the
	// cache key so an estimator change invalidates all cached output.
	VersionTag string
}

func DefaultConfig() Config {
	return Config{SumEpsilonKWh: 0.5, VersionTag: "v1"}
}

// Options are per-call switches.
type Options struct {
	// AllowIndexedAnchor opts into approximating an indexed plan from its
	// EFL sample-point price. Default mode never silently approximates.
	AllowIndexedAnchor bool
}

// Request bundles the estimator inputs.
type Request struct {
	Structure *rateplan.Structure
	Usage     *usage.Result
	Delivery  tdsp.DeliveryRates
	// MonthsCount caps how many trailing months are priced. Zero means all
	// months in the usage result.
	MonthsCount int
}

// TrueCost evaluates the rate structure against the monthly usage table
// and returns a cost estimate with an auditable component trace.
//
// Computational failures come back as NOT_COMPUTABLE data. Only malformed
// static input (an invalid rate structure) returns an error, because that
// is an upstream producer bug, not a transient data gap.
func TrueCost(cfg Config, req Request, opts Options) (CostEstimate, error) {
	if cfg.SumEpsilonKWh <= 0 {
		cfg.SumEpsilonKWh = DefaultConfig().SumEpsilonKWh
	}
	s := req.Structure
	if s == nil {
		return NotComputable(ReasonMissingRateStructure), nil
	}
	if err := s.Validate(); err != nil {
		return CostEstimate{}, err
	}

	status := StatusOK
	effective := s
	if !s.Type.Deterministic() {
		// Indexed/variable plans only define the current bill. Without the
		// opt-in anchor mode there is nothing to compute, and no evaluator
		// runs at all.
		if !opts.AllowIndexedAnchor || s.AnchorCentsPerKWh == nil {
			return NotComputable(ReasonIndexedPricing), nil
		}
		anchored := *s
		anchored.Type = rateplan.RateFixed
		anchored.EnergyCentsPerKWh = *s.AnchorCentsPerKWh
		effective = &anchored
		status = StatusApproximate
	}

	if req.Usage == nil || req.Usage.AnnualKWh == nil {
		return NotComputable(ReasonMissingAnnualKWh), nil
	}

	months := req.Usage.YearMonths
	if req.MonthsCount > 0 && len(months) > req.MonthsCount {
		months = months[len(months)-req.MonthsCount:]
	}
	if len(months) == 0 {
		return NotComputable(ReasonMissingAnnualKWh), nil
	}

	out := CostEstimate{Status: status, VersionTag: cfg.VersionTag}
	if status == StatusApproximate {
		out.Reason = ReasonIndexedPricing
	}

	var annual Cents
	for _, ym := range months {
		row, ok := req.Usage.Rows[ym]
		if !ok || row.Unresolvable || row.Buckets == nil {
			// Partial-year estimates mislead on an annualized comparison,
			// so one bad month sinks the whole estimate.
			return NotComputable(UnresolvableMonth(ym)), nil
		}
		mu := MonthUsage{YearMonth: ym, Buckets: row.Buckets, Stitched: row.Stitched}

		mc, reason, err := priceMonth(cfg, effective, mu, req.Delivery)
		if err != nil {
			return CostEstimate{}, err
		}
		if reason != ReasonNone {
			return NotComputable(reason), nil
		}
		annual += mc.TotalCents
		out.Months = append(out.Months, mc)
	}

	out.AnnualCents = annual
	out.AnnualDollars = annual.Dollars()
	// Rounded half-up so the average stays within half a cent of
	// annual/months even when the annual total does not divide evenly.
	n := int64(len(out.Months))
	out.MonthlyAverage = Cents((int64(annual) + n/2) / n)
	return out, nil
}

// priceMonth runs the evaluator chain for one month in its fixed order.
func priceMonth(cfg Config, s *rateplan.Structure, mu MonthUsage, delivery tdsp.DeliveryRates) (MonthCost, Reason, error) {
	mc := MonthCost{YearMonth: mu.YearMonth, UsageKWh: usage.RoundKWh(mu.AllTotalKWh()), Stitched: mu.Stitched}

	// Base energy: tiers replace the flat rate when present.
	switch {
	case s.Tiered != nil:
		mc.EnergyCents = evalTiered(s.Tiered, mu)
	case s.Type == rateplan.RateFixed:
		mc.EnergyCents = evalFixed(s.EnergyCentsPerKWh, mu)
	case s.Type == rateplan.RateTimeOfUse:
		c, err := evalTimeOfUse(s.Periods, mu, cfg.SumEpsilonKWh)
		if err != nil {
			var mismatch *BucketSumMismatchError
			if errors.As(err, &mismatch) {
				return MonthCost{}, BucketSumMismatch(mu.YearMonth), nil
			}
			return MonthCost{}, UnresolvableMonth(mu.YearMonth), nil
		}
		mc.EnergyCents = c
	default:
		return MonthCost{}, ReasonNone, fmt.Errorf("estimate: unpriceable rate type %q", s.Type)
	}

	if !s.DeliveryIncluded {
		mc.DeliveryCents = centsFor(mu.AllTotalKWh(), delivery.PerKWhDeliveryCents) +
			dollarsToCents(delivery.MonthlyCustomerChargeDollars)
	}

	mc.CreditCents = evalCredits(s.Credits, mu)

	subtotal := mc.EnergyCents + mc.DeliveryCents + mc.CreditCents
	mc.MinimumFeeCents, mc.MinimumTopUpCents = applyMinimum(s.MinimumUsage, subtotal, mu)
	mc.TotalCents = subtotal + mc.MinimumFeeCents + mc.MinimumTopUpCents

	if mu.Stitched {
		mc.Notes = append(mc.Notes, "month stitched from prior-year days")
	}
	return mc, ReasonNone, nil
}
