package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/stripe-exporter/pkg/billing"
	"github.com/platinummonkey/stripe-exporter/pkg/collector"
	"github.com/platinummonkey/stripe-exporter/pkg/config"
	"github.com/platinummonkey/stripe-exporter/pkg/observability"
	"github.com/platinummonkey/stripe-exporter/pkg/scheduler"
	"github.com/platinummonkey/stripe-exporter/pkg/stripeapi"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Logger config is part of what failed to load; use defaults.
		observability.NewLogger(observability.InfoLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	client, err := stripeapi.NewClient(cfg.Stripe.BaseURL, cfg.Stripe.APIKey, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Stripe client")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	store := collector.NewSnapshotStore()
	registry.MustRegister(collector.NewStripeCollector(store))

	fees := billing.FeeModel{
		Percent: cfg.Stripe.FeePercent,
		Flat:    cfg.Stripe.FeeFlat,
	}
	refresher := scheduler.NewRefresher(client, store, fees, cfg.Stripe.PollInterval, metrics, logger)

	router := mux.NewRouter()
	router.Use(observability.RequestIDMiddleware)
	router.Use(observability.RequestLoggingMiddleware(logger))
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(refresher))

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	refresher.Start(context.Background())

	go func() {
		logger.WithField("addr", server.Addr).Info("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(refresher.Stop)

	if err := shutdown.WaitForShutdown(); err != nil {
		os.Exit(1)
	}
}
