package quarantine

import (
	"context"
	"testing"

	"github.com/bllfield/intelliwatt-costengine/internal/estimate"
	"github.com/bllfield/intelliwatt-costengine/internal/storage"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		est        estimate.CostEstimate
		wantScope  Scope
		quarantine bool
	}{
		{"ok estimate", estimate.CostEstimate{Status: estimate.StatusOK}, ScopeNone, false},
		{"approximate", estimate.CostEstimate{Status: estimate.StatusApproximate, Reason: estimate.ReasonIndexedPricing}, ScopeNone, false},
		{"sum mismatch", estimate.NotComputable(estimate.BucketSumMismatch("2025-06")), ScopePlan, true},
		{"missing template", estimate.NotComputable(estimate.ReasonMissingTemplate), ScopePlan, true},
		{"missing structure", estimate.NotComputable(estimate.ReasonMissingRateStructure), ScopePlan, true},
		{"indexed", estimate.NotComputable(estimate.ReasonIndexedPricing), ScopePlan, false},
		{"missing annual", estimate.NotComputable(estimate.ReasonMissingAnnualKWh), ScopeHome, false},
		{"unresolvable month", estimate.NotComputable(estimate.UnresolvableMonth("2025-02")), ScopeHome, false},
		{"unknown code", estimate.NotComputable(estimate.Reason("SOMETHING_NEW")), ScopePlan, true},
	}
	for _, tc := range cases {
		v := Classify(tc.est)
		if v.Scope != tc.wantScope || v.Quarantine != tc.quarantine {
			t.Fatalf("%s: verdict = %+v, want scope %s quarantine %v", tc.name, v, tc.wantScope, tc.quarantine)
		}
	}
}

func TestIsQuarantineWorthy(t *testing.T) {
	if !IsQuarantineWorthy(estimate.BucketSumMismatch("2025-06")) {
		t.Fatalf("sum mismatch must be quarantine-worthy")
	}
	if IsQuarantineWorthy(estimate.ReasonIndexedPricing) {
		t.Fatalf("indexed pricing must be informational only")
	}
	if IsQuarantineWorthy(estimate.ReasonMissingAnnualKWh) {
		t.Fatalf("missing usage is home-scoped, not quarantine-worthy")
	}
}

type captureNotifier struct {
	opened []storage.QuarantineItem
}

func (n *captureNotifier) QuarantineOpened(ctx context.Context, item storage.QuarantineItem) {
	n.opened = append(n.opened, item)
}

func TestRecorderDedupesAndNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	notifier := &captureNotifier{}
	rec := NewRecorder(st, notifier, nil)

	est := estimate.NotComputable(estimate.BucketSumMismatch("2025-06"))
	v, err := rec.Record(ctx, "plan-1", "home-1", est)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !v.Quarantine {
		t.Fatalf("verdict = %+v, want quarantine", v)
	}

	// Second home hits the same plan defect: same item, no second alert.
	if _, err := rec.Record(ctx, "plan-1", "home-2", est); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	items, err := st.ListQuarantineItems(ctx, storage.QuarantineOpen, 0)
	if err != nil {
		t.Fatalf("ListQuarantineItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].SeenCount != 2 {
		t.Fatalf("seen count = %d, want 2", items[0].SeenCount)
	}
	if len(notifier.opened) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.opened))
	}
}

func TestRecorderSkipsNonQuarantineOutcomes(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	rec := NewRecorder(st, nil, nil)

	v, err := rec.Record(ctx, "plan-1", "home-1", estimate.NotComputable(estimate.ReasonIndexedPricing))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if v.Quarantine {
		t.Fatalf("indexed plan must not be quarantined")
	}
	items, _ := st.ListQuarantineItems(ctx, "", 0)
	if len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}
}
