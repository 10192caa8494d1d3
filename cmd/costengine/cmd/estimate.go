// Package cmd - estimate command
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bllfield/intelliwatt-costengine/internal/alerting"
	"github.com/bllfield/intelliwatt-costengine/internal/config"
	"github.com/bllfield/intelliwatt-costengine/internal/estimate"
	"github.com/bllfield/intelliwatt-costengine/internal/logging"
	"github.com/bllfield/intelliwatt-costengine/internal/quarantine"
	"github.com/bllfield/intelliwatt-costengine/internal/rateplan"
	"github.com/bllfield/intelliwatt-costengine/internal/service"
	"github.com/bllfield/intelliwatt-costengine/internal/storage"
	"github.com/bllfield/intelliwatt-costengine/internal/tdsp"
	"github.com/bllfield/intelliwatt-costengine/internal/usage"
)

var (
	structureFile      string
	homeID             string
	meterID            string
	planID             string
	territorySlug      string
	deliveryCents      float64
	deliveryMonthly    float64
	allowIndexedAnchor bool
)

// estimateCmd prices one plan against one home's usage history.
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the true annual cost of a plan for a home",
	Long: `Price a rate structure against a home's landed usage history.

The structure file holds the extracted rate structure JSON. Delivery rates
default to the flag values; production deployments resolve them from the
territory registry instead.

Examples:
  costengine estimate --structure plan.json --home home-1 --meter meter-1 --territory oncor
  costengine estimate --structure plan.json --home home-1 --meter meter-1 --territory oncor --allow-indexed-anchor`,
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringVarP(&structureFile, "structure", "s", "", "rate structure JSON file (required)")
	estimateCmd.Flags().StringVar(&homeID, "home", "", "home identifier (required)")
	estimateCmd.Flags().StringVar(&meterID, "meter", "", "meter identifier (required)")
	estimateCmd.Flags().StringVar(&planID, "plan", "", "plan identifier (defaults to the structure file name)")
	estimateCmd.Flags().StringVar(&territorySlug, "territory", "oncor", "TDSP territory slug")
	estimateCmd.Flags().Float64Var(&deliveryCents, "delivery-cents", 3.5, "delivery charge in cents per kWh")
	estimateCmd.Flags().Float64Var(&deliveryMonthly, "delivery-monthly", 4.30, "monthly customer charge in dollars")
	estimateCmd.Flags().BoolVar(&allowIndexedAnchor, "allow-indexed-anchor", false, "approximate indexed plans from their anchor price")
	estimateCmd.MarkFlagRequired("structure")
	estimateCmd.MarkFlagRequired("home")
	estimateCmd.MarkFlagRequired("meter")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.FromEnv()

	raw, err := os.ReadFile(structureFile)
	if err != nil {
		return fmt.Errorf("read structure: %w", err)
	}
	var structure rateplan.Structure
	if err := json.Unmarshal(raw, &structure); err != nil {
		return fmt.Errorf("parse structure: %w", err)
	}
	if planID == "" {
		planID = structureFile
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	builder := usage.NewBuilder(
		storage.NewIntervalSource(st),
		nil,
		usage.Config{Location: loc, AliasEpsilonKWh: cfg.AliasEpsilonKWh},
		logging.Logger,
	)

	lookup := tdsp.NewStaticLookup()
	lookup.Register(tdsp.DeliveryRates{
		TerritorySlug:                territorySlug,
		PerKWhDeliveryCents:          deliveryCents,
		MonthlyCustomerChargeDollars: deliveryMonthly,
		EffectiveDate:                time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
	})

	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	recorder := quarantine.NewRecorder(st, alerter, logging.Logger)

	svc := service.New(st, builder, lookup, nil, recorder, service.Config{
		MonthsCount: cfg.MonthsCount,
		CacheTTL:    cfg.CacheTTL,
		Backfill:    usage.BackfillOptions{Budget: cfg.BackfillBudget},
		Estimator:   estimate.Config{SumEpsilonKWh: cfg.SumEpsilonKWh, VersionTag: cfg.VersionTag},
	}, logging.Logger)

	resp, err := svc.EstimateTrueCost(ctx, service.Request{
		HomeID:        homeID,
		MeterID:       meterID,
		PlanID:        planID,
		TerritorySlug: territorySlug,
		Structure:     &structure,
		Options:       estimate.Options{AllowIndexedAnchor: allowIndexedAnchor},
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp.Estimate, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if resp.FromCache {
		fmt.Fprintln(os.Stderr, "(served from cache)")
	}
	return nil
}
