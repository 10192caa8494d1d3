// Package cmd - worker command
package cmd

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bllfield/intelliwatt-costengine/internal/config"
	"github.com/bllfield/intelliwatt-costengine/internal/cron"
)

// workerCmd runs the maintenance worker.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the maintenance worker (cache purge, job bookkeeping)",
	Long: `Run the background worker that purges expired estimate cache entries
on a schedule. Requires the postgrespool driver so advisory locks keep
multiple replicas from running the job at once.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expose Prometheus metrics alongside the worker.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	err := cron.Run(ctx, cfg.DBDriver, cfg.DBDSN)
	if err == context.Canceled {
		return nil
	}
	return err
}
