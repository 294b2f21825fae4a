// Package observability provides structured logging, exporter self-metrics,
// health probes, and graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("interval", cfg.PollInterval).Info("Scheduler started")
//
// # Self-Metrics
//
// The exporter instruments its own refresh loop and HTTP surface on the
// same Prometheus registry that carries the Stripe business metrics:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RefreshCyclesTotal.WithLabelValues("success").Inc()
//
// # Health Checks
//
// Readiness is derived from the refresh loop: the process reports
// degraded (but keeps serving) until the first successful refresh.
package observability
