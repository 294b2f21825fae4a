package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/stripe-exporter/pkg/billing"
	"github.com/platinummonkey/stripe-exporter/pkg/collector"
	"github.com/platinummonkey/stripe-exporter/pkg/observability"
	"github.com/platinummonkey/stripe-exporter/pkg/stripeapi"
)

// State is the refresh loop's current phase
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateAggregating
	StatePublishing
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateAggregating:
		return "aggregating"
	case StatePublishing:
		return "publishing"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// FetchClient is the slice of the Stripe client the refresher needs
type FetchClient interface {
	FetchAll(ctx context.Context, chargesSince time.Time) (*stripeapi.BillingData, error)
}

// Refresher runs one fetch-aggregate-publish cycle per tick
type Refresher struct {
	client   FetchClient
	store    *collector.SnapshotStore
	fees     billing.FeeModel
	interval time.Duration
	metrics  *observability.Metrics
	logger   *observability.Logger
	now      func() time.Time

	state       atomic.Int32
	lastSuccess atomic.Int64 // unix nanos, 0 = never
	running     atomic.Bool
	cron        *cron.Cron
}

// NewRefresher creates a refresher; Start schedules it
func NewRefresher(client FetchClient, store *collector.SnapshotStore, fees billing.FeeModel, interval time.Duration, metrics *observability.Metrics, logger *observability.Logger) *Refresher {
	return &Refresher{
		client:   client,
		store:    store,
		fees:     fees,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// State returns the current phase of the refresh loop
func (r *Refresher) State() State {
	return State(r.state.Load())
}

// LastSuccess returns the time of the last successful cycle, or the
// zero time if none has succeeded yet
func (r *Refresher) LastSuccess() time.Time {
	nanos := r.lastSuccess.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Start runs one immediate refresh and then schedules one per interval.
// Cycles never overlap: a tick that fires while a cycle is still in
// flight is skipped.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.WithError(err).Warn("Initial refresh failed, serving empty metrics until the next cycle")
		}
	}()

	r.cron = cron.New()
	r.cron.Schedule(cron.Every(r.interval), cron.FuncJob(func() {
		_ = r.RunOnce(ctx)
	}))
	r.cron.Start()

	r.logger.WithField("interval", r.interval.String()).Info("Refresh scheduler started")
}

// Stop halts the schedule and waits for any in-flight cycle to finish,
// bounded by ctx
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		r.logger.Info("Refresh scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single fetch-aggregate-publish cycle
func (r *Refresher) RunOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("Previous refresh cycle still running, skipping tick")
		return nil
	}
	defer r.running.Store(false)

	start := r.now()
	r.logger.Debug("Starting refresh cycle")

	r.state.Store(int32(StateFetching))
	data, err := r.client.FetchAll(ctx, start.Add(-billing.ChargeWindow))
	if err != nil {
		r.backoff(err, start)
		return err
	}

	r.state.Store(int32(StateAggregating))
	snap := billing.Aggregate(data, r.fees, start)

	r.state.Store(int32(StatePublishing))
	r.store.Publish(snap)

	r.lastSuccess.Store(start.UnixNano())
	r.state.Store(int32(StateIdle))

	duration := r.now().Sub(start)
	r.metrics.LastRefreshTimestamp.Set(float64(start.Unix()))
	r.metrics.RefreshCyclesTotal.WithLabelValues("success").Inc()
	r.metrics.RefreshDuration.Observe(duration.Seconds())
	r.logger.WithFields(map[string]interface{}{
		"duration":             duration.String(),
		"active_subscriptions": snap.ActiveSubscriptions,
		"payments_last_24h":    snap.PaymentsLast24h,
	}).Info("Refresh cycle complete")

	return nil
}

// backoff records a failed cycle. The previously published snapshot
// stays in place; the next attempt is the next scheduled tick.
func (r *Refresher) backoff(err error, start time.Time) {
	r.state.Store(int32(StateBackoff))

	kind := errorKind(err)
	r.metrics.LastRefreshTimestamp.Set(float64(start.Unix()))
	r.metrics.RefreshCyclesTotal.WithLabelValues("error").Inc()
	r.metrics.FetchErrorsTotal.WithLabelValues(kind).Inc()

	log := r.logger.WithError(err).WithField("error_kind", kind)
	if stripeapi.IsAuthError(err) {
		log.Error("Stripe rejected the API key; serving the last good snapshot until the credential is fixed")
	} else {
		log.Warn("Refresh cycle failed, keeping previous snapshot")
	}
}

// errorKind classifies an error for the fetch error counter
func errorKind(err error) string {
	var parseErr *stripeapi.ParseError
	switch {
	case stripeapi.IsAuthError(err):
		return "auth"
	case stripeapi.IsRetryable(err):
		return "transient"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}
