package quarantine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bllfield/intelliwatt-costengine/internal/estimate"
	"github.com/bllfield/intelliwatt-costengine/internal/storage"
)

// Notifier is told when a defect lands in the queue for the first time.
// Re-sightings of a known defect do not notify.
type Notifier interface {
	QuarantineOpened(ctx context.Context, item storage.QuarantineItem)
}

// Recorder applies gate verdicts to the persistent queue.
type Recorder struct {
	st       storage.Storage
	notifier Notifier
	log      *zap.Logger
}

func NewRecorder(st storage.Storage, notifier Notifier, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{st: st, notifier: notifier, log: log}
}

// DedupeKey identifies a defect: the same plan failing the same way is one
// queue item no matter how many homes trip over it.
func DedupeKey(planID, reasonCode string) string {
	return planID + "|" + reasonCode
}

// Record classifies the estimate and, when quarantine-worthy, upserts the
// queue item. It returns the verdict so callers can annotate their own
// output. Recording is best-effort: a storage failure is returned but the
// estimate itself already stands.
func (r *Recorder) Record(ctx context.Context, planID, homeID string, est estimate.CostEstimate) (Verdict, error) {
	v := Classify(est)
	if !v.Quarantine {
		if v.Scope != ScopeNone {
			r.log.Info("estimate not computable, not quarantine-worthy",
				zap.String("planId", planID),
				zap.String("homeId", homeID),
				zap.String("reason", string(est.Reason)),
				zap.String("scope", string(v.Scope)))
		}
		return v, nil
	}

	dedupeKey := DedupeKey(planID, v.ReasonCode)
	existing, err := r.st.GetQuarantineItemByDedupeKey(ctx, dedupeKey)
	if err != nil {
		return v, fmt.Errorf("quarantine: lookup %s: %w", dedupeKey, err)
	}

	now := time.Now()
	item := storage.QuarantineItem{
		ID:          uuid.NewString(),
		DedupeKey:   dedupeKey,
		PlanID:      planID,
		HomeID:      homeID,
		ReasonCode:  v.ReasonCode,
		Detail:      string(est.Reason),
		Severity:    storage.SeverityQuarantine,
		Status:      storage.QuarantineOpen,
		FirstSeenAt: now,
		LastSeenAt:  now,
		SeenCount:   1,
	}
	if err := r.st.UpsertQuarantineItem(ctx, item); err != nil {
		return v, fmt.Errorf("quarantine: upsert %s: %w", dedupeKey, err)
	}

	r.log.Warn("plan quarantined",
		zap.String("planId", planID),
		zap.String("reason", v.ReasonCode),
		zap.Bool("new", existing == nil))

	if existing == nil && r.notifier != nil {
		stored, err := r.st.GetQuarantineItemByDedupeKey(ctx, dedupeKey)
		if err == nil && stored != nil {
			r.notifier.QuarantineOpened(ctx, *stored)
		}
	}
	return v, nil
}
