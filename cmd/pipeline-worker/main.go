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

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", "err", err)
	}
	logger := logging.New(cfg.Log)

	// DBOS runtime is required for the worker
	a, err := app.New(context.Background(), cfg, app.Options{Durable: true}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", "err", err)
	}

	// Launch DBOS (must be done after workflow registration)
	if err := a.Launch(); err != nil {
		a.Shutdown(10 * time.Second)
		logger.Fatal("Failed to launch DBOS", "err", err)
	}
	defer a.Shutdown(10 * time.Second)

	handler := handlers.NewHandler(a.Runner,
		handlers.WithDedupe(a.Dedupe),
		handlers.WithNamedStarter(a.Runtime),
		handlers.WithMode("worker"),
		handlers.WithLogger(logger))

	routes := handler.Routes()
	routes.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Pipeline worker starting", "addr", cfg.HTTPAddr, "engine", cfg.EngineURL)
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
