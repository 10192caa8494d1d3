package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/bllfield/intelliwatt-costengine/internal/metrics"
)

// BackfillOptions bound the opt-in backfill path. The budget is wall-clock:
// when it runs out the caller gets whatever coverage exists, never a hang.
type BackfillOptions struct {
	// Budget caps the total wait. Zero defaults to 30s.
	Budget time.Duration
	// RecheckInterval is the pause between coverage re-checks. Zero
	// defaults to 5s.
	RecheckInterval time.Duration
}

// BuildWithBackfill builds the usage table and, if coverage is incomplete,
// triggers the external aggregation job once and re-checks within the
// budget. It returns the last (possibly partial) result; insufficient
// coverage is reported through the coverage report, not an error.
func (b *Builder) BuildWithBackfill(ctx context.Context, req Request, trigger BackfillTrigger, opts BackfillOptions) (*Result, error) {
	res, err := b.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Coverage.Complete() || trigger == nil {
		return res, nil
	}

	jobID, err := trigger.RequestBackfill(ctx, req.HomeID, req.MeterID)
	if err != nil {
		return nil, fmt.Errorf("usage: request backfill: %w", err)
	}
	metrics.BackfillsTriggeredTotal.Inc()
	b.log.Info("backfill requested",
		zap.String("home_id", req.HomeID),
		zap.String("job_id", jobID),
		zap.Int("months_resolved", res.Coverage.MonthsResolved),
	)

	budget := opts.Budget
	if budget <= 0 {
		budget = 30 * time.Second
	}
	interval := opts.RecheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	backoff := retry.WithMaxDuration(budget, retry.NewConstant(interval))
	rerr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, berr := b.Build(ctx, req)
		if berr != nil {
			return berr
		}
		res = r
		if !r.Coverage.Complete() {
			return retry.RetryableError(fmt.Errorf("coverage %d/%d", r.Coverage.MonthsResolved, r.Coverage.MonthsRequested))
		}
		return nil
	})
	if rerr != nil && !res.Coverage.Complete() {
		// Budget exhausted: hand back the partial result.
		b.log.Warn("backfill budget exhausted",
			zap.String("home_id", req.HomeID),
			zap.String("job_id", jobID),
			zap.Int("months_resolved", res.Coverage.MonthsResolved),
		)
	}
	return res, nil
}
