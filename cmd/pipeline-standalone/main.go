package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-generation-pipeline/internal/app"
	"github.com/tendant/simple-generation-pipeline/internal/config"
	"github.com/tendant/simple-generation-pipeline/internal/handlers"
	"github.com/tendant/simple-generation-pipeline/internal/logging"
)

// Standalone pipeline worker for quick testing.
// Runs jobs synchronously against the embedded simple-content service
// (in-memory repository + filesystem storage) and serves file:// inputs
// from STORAGE_DIR. No database needed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", "err", err)
	}
	logger := logging.New(cfg.Log)

	a, err := app.New(context.Background(), cfg, app.Options{FileInputs: true}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "err", err)
	}
	defer a.Close()

	routes := handlers.NewHandler(a.Runner,
		handlers.WithMode("standalone"),
		handlers.WithLogger(logger)).Routes()
	routes.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Pipeline standalone ready",
			"addr", cfg.HTTPAddr,
			"storage_dir", cfg.StorageDir,
			"engine", cfg.EngineURL)
		logger.Info("Quick test",
			"run", "curl -XPOST localhost"+cfg.HTTPAddr+`/v1/jobs/run -d '{"job":{"model_name":"stable-diffusion","prompt":"a cat"}}'`)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}

	logger.Info("Server stopped")
}
