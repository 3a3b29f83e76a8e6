package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agentfs/agentfs/internal/logger"
	"github.com/agentfs/agentfs/pkg/config"
	"github.com/agentfs/agentfs/pkg/metrics"
	promMetrics "github.com/agentfs/agentfs/pkg/metrics/prometheus"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a sandbox filesystem session",
	Long: `Start a sandbox filesystem session with the configured mounts and keep
it available until interrupted.

The session opens the record store behind every managed mount, verifies the
root directory, and then serves dispatched operations from the interception
substrate. On SIGINT or SIGTERM all open descriptors are released and the
stores are closed.

Examples:
  # Run with default config location
  agentfs run

  # Run with custom config
  agentfs run --config /etc/agentfs/config.yaml

  # Run with trace logging of every operation
  AGENTFS_TRACE=true AGENTFS_LOGGING_LEVEL=DEBUG agentfs run`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var vfsMetrics metrics.VFSMetrics
	var storeMetrics metrics.StoreMetrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		vfsMetrics = promMetrics.NewVFSMetrics(nil)
		storeMetrics = promMetrics.NewStoreMetrics(nil)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	session, err := config.InitializeSession(cfg, vfsMetrics, storeMetrics)
	if err != nil {
		return err
	}

	logger.Info("sandbox session ready",
		"session_id", session.ID(),
		"mounts", len(cfg.Mounts),
	)

	<-ctx.Done()
	logger.Info("shutting down", "session_id", session.ID())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	if err := session.Close(shutdownCtx); err != nil {
		return fmt.Errorf("session shutdown failed: %w", err)
	}

	logger.Info("session closed", "session_id", session.ID())
	return nil
}
