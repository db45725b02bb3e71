package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/di"
	"github.com/mikey/mail-threat-engine/internal/factory"
	"github.com/mikey/mail-threat-engine/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	stores *factory.Stores,
	repCache core.ReputationCache,
	eventLog core.EventLog,
) error {
	defer logger.Sync()

	// Start the metrics listener
	metricsServer := startMetricsServer(cfg.GetServer().MetricsAddress, logger)

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the filter
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Failed to stop metrics listener", zap.Error(err))
		}
		cancel()
	}

	// Flush the event publisher
	if closer, ok := eventLog.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := repCache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	if err := stores.Close(); err != nil {
		logger.Error("Failed to close storage", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

// startMetricsServer serves /metrics until shut down. An empty address
// disables the listener.
func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics listener started", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener failed", zap.Error(err))
		}
	}()
	return server
}
