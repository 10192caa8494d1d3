package estimate

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Status of a cost estimate. Computational failures are data, not errors:
// batch callers scanning thousands of plans keep going past any one plan.
type Status string

const (
	StatusOK            Status = "OK"
	StatusApproximate   Status = "APPROXIMATE"
	StatusNotComputable Status = "NOT_COMPUTABLE"
)

// Reason explains a NOT_COMPUTABLE (or APPROXIMATE) outcome. Month-scoped
// reasons carry the year-month after a colon.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonMissingAnnualKWh     Reason = "MISSING_ANNUAL_KWH"
	ReasonIndexedPricing       Reason = "NON_DETERMINISTIC_PRICING_INDEXED"
	ReasonMissingTemplate      Reason = "MISSING_TEMPLATE"
	ReasonMissingRateStructure Reason = "MISSING_RATE_STRUCTURE"

	codeUnresolvableMonth = "UNRESOLVABLE_MONTH"
	codeBucketSumMismatch = "USAGE_BUCKET_SUM_MISMATCH"
)

// UnresolvableMonth builds the reason for the first month that could not
// be resolved.
func UnresolvableMonth(yearMonth string) Reason {
	return Reason(codeUnresolvableMonth + ":" + yearMonth)
}

// BucketSumMismatch builds the reason for a month whose time-of-use period
// kWh disagrees with the all-hours total beyond epsilon.
func BucketSumMismatch(yearMonth string) Reason {
	return Reason(codeBucketSumMismatch + ":" + yearMonth)
}

// Code strips any month qualifier, returning the bare reason code.
func (r Reason) Code() string {
	s := string(r)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// Cents is money in integer cents. All intermediate math stays integral;
// only externally reported figures are rounded to two decimal dollars.
type Cents int64

// Dollars renders cents as an exact two-decimal dollar string.
func (c Cents) Dollars() string {
	return decimal.New(int64(c), -2).StringFixed(2)
}

// MonthCost is the auditable per-month component trace: enough to
// reconstruct the arithmetic without re-running the evaluators.
type MonthCost struct {
	YearMonth string  `json:"yearMonth"`
	UsageKWh  float64 `json:"usageKwh"`

	EnergyCents   Cents `json:"energyCents"`
	DeliveryCents Cents `json:"deliveryCents"`
	CreditCents   Cents `json:"creditCents"`

	// Minimum-usage adjustments are reported separately for auditability:
	// a FEE rule surfaces in MinimumFeeCents, a BILL rule in
	// MinimumTopUpCents.
	MinimumFeeCents   Cents `json:"minimumFeeCents"`
	MinimumTopUpCents Cents `json:"minimumTopUpCents"`

	TotalCents Cents `json:"totalCents"`

	Stitched bool     `json:"stitched,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

// CostEstimate is the engine's terminal output.
type CostEstimate struct {
	Status Status `json:"status"`
	Reason Reason `json:"reason,omitempty"`

	AnnualCents    Cents       `json:"annualCents,omitempty"`
	AnnualDollars  string      `json:"annualDollars,omitempty"`
	MonthlyAverage Cents       `json:"monthlyAverageCents,omitempty"`
	Months         []MonthCost `json:"months,omitempty"`

	// VersionTag records the estimator revision that produced the figures.
	VersionTag string `json:"versionTag,omitempty"`
}

// NotComputable builds a failure result; no cost figures are attached.
func NotComputable(reason Reason) CostEstimate {
	return CostEstimate{Status: StatusNotComputable, Reason: reason}
}
