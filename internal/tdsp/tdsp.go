// Package tdsp models the regulated delivery utility's charges: the wires
// company is priced separately from the competitive retailer unless a plan
// folds delivery into its energy rate.
package tdsp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DeliveryRates is the pass-through delivery pricing for one territory,
// treated as an opaque value object by the estimator.
type DeliveryRates struct {
	TerritorySlug                string    `json:"territorySlug"`
	PerKWhDeliveryCents          float64   `json:"perKwhDeliveryChargeCents"`
	MonthlyCustomerChargeDollars float64   `json:"monthlyCustomerChargeDollars"`
	EffectiveDate                time.Time `json:"effectiveDate"`
}

// Tuple is the stable string rendering folded into estimate cache keys.
func (r DeliveryRates) Tuple() string {
	return fmt.Sprintf("%s|%.6f|%.2f|%s",
		r.TerritorySlug, r.PerKWhDeliveryCents, r.MonthlyCustomerChargeDollars,
		r.EffectiveDate.UTC().Format("2006-01-02"))
}

// Lookup resolves delivery rates for a territory as of a date. The
// production implementation lives with the persistence collaborator; the
// static registry below backs tests and the CLI.
type Lookup interface {
	GetDeliveryRates(ctx context.Context, territorySlug string, asOf time.Time) (DeliveryRates, error)
}

// StaticLookup is an in-memory Lookup keyed by territory slug, holding one
// or more effective-dated rate rows per territory.
type StaticLookup struct {
	mu    sync.RWMutex
	rates map[string][]DeliveryRates
}

func NewStaticLookup() *StaticLookup {
	return &StaticLookup{rates: make(map[string][]DeliveryRates)}
}

// Register adds a rate row, keeping rows sorted by effective date.
func (l *StaticLookup) Register(r DeliveryRates) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := append(l.rates[r.TerritorySlug], r)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].EffectiveDate.Before(rows[j].EffectiveDate)
	})
	l.rates[r.TerritorySlug] = rows
}

// GetDeliveryRates returns the latest row effective on or before asOf.
func (l *StaticLookup) GetDeliveryRates(ctx context.Context, territorySlug string, asOf time.Time) (DeliveryRates, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rows := l.rates[territorySlug]
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].EffectiveDate.After(asOf) {
			return rows[i], nil
		}
	}
	return DeliveryRates{}, fmt.Errorf("tdsp: no delivery rates for territory %q as of %s", territorySlug, asOf.Format("2006-01-02"))
}
