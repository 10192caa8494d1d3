package quarantine

import (
	"github.com/bllfield/intelliwatt-costengine/internal/estimate"
)

// Scope says whose data is implicated by a failed estimate: the plan's
// extracted rate structure, or the home's usage history. Plan-scoped
// defects pull the plan from comparison results for everyone; home-scoped
// ones only degrade that one home.
type Scope string

const (
	ScopePlan Scope = "plan"
	ScopeHome Scope = "home"
	ScopeNone Scope = "none"
)

// Verdict is the gate's classification of one estimate outcome.
type Verdict struct {
	Scope Scope
	// Quarantine means the item should land in the review queue; false
	// with a non-none scope means log-only.
	Quarantine bool
	ReasonCode string
}

// IsQuarantineWorthy reports whether a failure reason alone warrants a
// review-queue item. Home-scoped data gaps and expected indexed outcomes
// are log-only.
func IsQuarantineWorthy(reason estimate.Reason) bool {
	return Classify(estimate.NotComputable(reason)).Quarantine
}

// Classify maps an estimate outcome to a quarantine verdict. Indexed plans
// are expected to be non-computable, so they never enter the queue; a
// bucket-sum mismatch or a missing extraction means the plan's data is
// wrong and a human needs to look.
func Classify(est estimate.CostEstimate) Verdict {
	if est.Status != estimate.StatusNotComputable {
		return Verdict{Scope: ScopeNone}
	}
	code := est.Reason.Code()
	switch code {
	case "USAGE_BUCKET_SUM_MISMATCH":
		// The plan's periods and the usage store disagree; until resolved
		// the plan must not appear in comparisons.
		return Verdict{Scope: ScopePlan, Quarantine: true, ReasonCode: code}
	case string(estimate.ReasonMissingTemplate), string(estimate.ReasonMissingRateStructure):
		return Verdict{Scope: ScopePlan, Quarantine: true, ReasonCode: code}
	case string(estimate.ReasonIndexedPricing):
		return Verdict{Scope: ScopePlan, Quarantine: false, ReasonCode: code}
	case string(estimate.ReasonMissingAnnualKWh), "UNRESOLVABLE_MONTH":
		return Verdict{Scope: ScopeHome, Quarantine: false, ReasonCode: code}
	default:
		// Unknown failure codes get reviewed rather than silently dropped.
		return Verdict{Scope: ScopePlan, Quarantine: true, ReasonCode: code}
	}
}
