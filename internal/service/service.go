package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bllfield/intelliwatt-costengine/internal/estimate"
	"github.com/bllfield/intelliwatt-costengine/internal/metrics"
	"github.com/bllfield/intelliwatt-costengine/internal/quarantine"
	"github.com/bllfield/intelliwatt-costengine/internal/rateplan"
	"github.com/bllfield/intelliwatt-costengine/internal/storage"
	"github.com/bllfield/intelliwatt-costengine/internal/tdsp"
	"github.com/bllfield/intelliwatt-costengine/internal/usage"
)

// UsageProvider builds monthly usage tables. *usage.Builder satisfies it.
type UsageProvider interface {
	BuildWithBackfill(ctx context.Context, req usage.Request, trigger usage.BackfillTrigger, opts usage.BackfillOptions) (*usage.Result, error)
}

// Config carries the service-level knobs.
type Config struct {
	// MonthsCount is the estimate window; zero defaults to 12.
	MonthsCount int
	// CacheTTL bounds how long a cached estimate is served; zero defaults
	// to 24h.
	CacheTTL time.Duration
	// Backfill bounds the wait for missing usage.
	Backfill usage.BackfillOptions
	// Estimator is handed through to the cost evaluators.
	Estimator estimate.Config
}

// Request identifies one plan-against-home pricing question.
type Request struct {
	HomeID        string
	MeterID       string
	PlanID        string
	TerritorySlug string
	Structure     *rateplan.Structure
	// AsOf anchors the delivery-rate lookup and the usage window. Zero
	// means now.
	AsOf time.Time
	// Options are per-call estimator switches.
	Options estimate.Options
}

// Response wraps the estimate with cache provenance.
type Response struct {
	Estimate estimate.CostEstimate
	CacheKey string
	// FromCache is true when the estimate was served without recomputing.
	FromCache bool
	Usage     *usage.Result
}

// Service is the get-or-compute front door: it builds usage, consults the
// cache, runs the estimator, and applies the quarantine gate.
type Service struct {
	st       storage.Storage
	usage    UsageProvider
	delivery tdsp.Lookup
	trigger  usage.BackfillTrigger
	recorder *quarantine.Recorder
	cfg      Config
	log      *zap.Logger
}

func New(st storage.Storage, up UsageProvider, delivery tdsp.Lookup, trigger usage.BackfillTrigger, recorder *quarantine.Recorder, cfg Config, log *zap.Logger) *Service {
	if cfg.MonthsCount <= 0 {
		cfg.MonthsCount = 12
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{st: st, usage: up, delivery: delivery, trigger: trigger, recorder: recorder, cfg: cfg, log: log}
}

// EstimateTrueCost answers the pricing question, serving from cache when
// the inputs are byte-identical to a previous computation.
func (s *Service) EstimateTrueCost(ctx context.Context, req Request) (Response, error) {
	if req.Structure == nil {
		est := estimate.NotComputable(estimate.ReasonMissingRateStructure)
		s.observe(req, est, false)
		return Response{Estimate: est}, nil
	}

	keys, err := rateplan.RequiredKeys(req.Structure)
	if err != nil {
		return Response{}, fmt.Errorf("service: derive buckets for plan %s: %w", req.PlanID, err)
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	u, err := s.usage.BuildWithBackfill(ctx, usage.Request{
		HomeID:       req.HomeID,
		MeterID:      req.MeterID,
		MonthsCount:  s.cfg.MonthsCount,
		RequiredKeys: keys,
	}, s.trigger, s.cfg.Backfill)
	if err != nil {
		return Response{}, fmt.Errorf("service: build usage for home %s: %w", req.HomeID, err)
	}

	delivery, err := s.delivery.GetDeliveryRates(ctx, req.TerritorySlug, asOf)
	if err != nil {
		return Response{}, fmt.Errorf("service: delivery rates: %w", err)
	}

	cacheKey := CacheKey(s.cfg.Estimator.VersionTag, s.cfg.MonthsCount, u.AnnualKWh,
		delivery, req.Structure.ContentHash(), UsageHash(u))

	if cached, err := s.lookupCache(ctx, cacheKey); err != nil {
		// Cache trouble never blocks an estimate.
		s.log.Warn("estimate cache lookup failed", zap.Error(err))
	} else if cached != nil {
		return Response{Estimate: *cached, CacheKey: cacheKey, FromCache: true, Usage: u}, nil
	}

	started := time.Now()
	est, err := estimate.TrueCost(s.cfg.Estimator, estimate.Request{
		Structure:   req.Structure,
		Usage:       u,
		Delivery:    delivery,
		MonthsCount: s.cfg.MonthsCount,
	}, req.Options)
	if err != nil {
		return Response{}, fmt.Errorf("service: estimate plan %s: %w", req.PlanID, err)
	}
	metrics.EstimateDurationSeconds.WithLabelValues(string(req.Structure.Type)).Observe(time.Since(started).Seconds())

	s.observe(req, est, true)

	if s.recorder != nil {
		if v, rerr := s.recorder.Record(ctx, req.PlanID, req.HomeID, est); rerr != nil {
			s.log.Warn("quarantine record failed", zap.Error(rerr))
		} else if v.Quarantine {
			metrics.QuarantinedPlansTotal.WithLabelValues(v.ReasonCode).Inc()
		}
	}

	if err := s.storeCache(ctx, cacheKey, req, est); err != nil {
		s.log.Warn("estimate cache store failed", zap.Error(err))
	}

	return Response{Estimate: est, CacheKey: cacheKey, Usage: u}, nil
}

func (s *Service) lookupCache(ctx context.Context, cacheKey string) (*estimate.CostEstimate, error) {
	entry, err := s.st.GetEstimate(ctx, cacheKey)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if !entry.ExpiresAt.IsZero() && entry.ExpiresAt.Before(time.Now()) {
		metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
		return nil, nil
	}
	var est estimate.CostEstimate
	if err := json.Unmarshal(entry.Payload, &est); err != nil {
		return nil, fmt.Errorf("decode cached estimate: %w", err)
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return &est, nil
}

func (s *Service) storeCache(ctx context.Context, cacheKey string, req Request, est estimate.CostEstimate) error {
	payload, err := json.Marshal(est)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.st.PutEstimate(ctx, storage.EstimateEntry{
		CacheKey:   cacheKey,
		HomeID:     req.HomeID,
		PlanID:     req.PlanID,
		Status:     string(est.Status),
		Payload:    payload,
		ComputedAt: now,
		ExpiresAt:  now.Add(s.cfg.CacheTTL),
	})
}

// InvalidateHome drops every cached estimate for a home, used when its
// usage history is corrected out of band.
func (s *Service) InvalidateHome(ctx context.Context, homeID string) (int64, error) {
	return s.st.DeleteEstimatesForHome(ctx, homeID)
}

func (s *Service) observe(req Request, est estimate.CostEstimate, computed bool) {
	if computed {
		metrics.EstimatesTotal.WithLabelValues(string(est.Status)).Inc()
	}
	if est.Status == estimate.StatusNotComputable {
		metrics.NotComputableTotal.WithLabelValues(est.Reason.Code()).Inc()
		s.log.Info("estimate not computable",
			zap.String("planId", req.PlanID),
			zap.String("homeId", req.HomeID),
			zap.String("reason", string(est.Reason)))
	}
}
