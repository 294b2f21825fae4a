package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StripeCollector renders the current snapshot in exposition format.
// Scalar metrics are always emitted, zero-valued when no data exists
// yet; labeled series cover the plans present in the current snapshot.
type StripeCollector struct {
	store *SnapshotStore

	activeSubscriptions *prometheus.Desc
	paymentsLast24h     *prometheus.Desc
	revenueLast24h      *prometheus.Desc
	avgPaymentLast24h   *prometheus.Desc
	feesLast24h         *prometheus.Desc
	netRevenueLast24h   *prometheus.Desc
	lastRefresh         *prometheus.Desc

	subscriptionsByPlan     *prometheus.Desc
	mrrByPlan               *prometheus.Desc
	netMRRByPlan            *prometheus.Desc
	paymentsLast24hByPlan   *prometheus.Desc
	revenueLast24hByPlan    *prometheus.Desc
	netRevenueLast24hByPlan *prometheus.Desc
}

// NewStripeCollector returns a collector reading from store
func NewStripeCollector(store *SnapshotStore) *StripeCollector {
	planLabels := []string{"plan_name"}

	return &StripeCollector{
		store: store,

		activeSubscriptions: prometheus.NewDesc(
			"stripe_active_subscriptions",
			"Number of active Stripe subscriptions",
			nil, nil,
		),
		paymentsLast24h: prometheus.NewDesc(
			"stripe_successful_payments_last_24h",
			"Number of successful Stripe payments in the last 24 hours",
			nil, nil,
		),
		revenueLast24h: prometheus.NewDesc(
			"stripe_total_revenue_last_24h",
			"Total revenue from successful Stripe charges in the last 24 hours (gross, major units)",
			nil, nil,
		),
		avgPaymentLast24h: prometheus.NewDesc(
			"stripe_avg_payment_amount_last_24h",
			"Average Stripe payment amount in the last 24 hours (gross, major units)",
			nil, nil,
		),
		feesLast24h: prometheus.NewDesc(
			"stripe_fees_last_24h",
			"Total Stripe fees in the last 24 hours (major units)",
			nil, nil,
		),
		netRevenueLast24h: prometheus.NewDesc(
			"stripe_net_revenue_last_24h",
			"Net revenue (after fees) in the last 24 hours (major units)",
			nil, nil,
		),
		lastRefresh: prometheus.NewDesc(
			"stripe_last_successful_refresh_timestamp_seconds",
			"Unix timestamp of the last successful refresh cycle, 0 if none",
			nil, nil,
		),

		subscriptionsByPlan: prometheus.NewDesc(
			"stripe_active_subscriptions_by_plan",
			"Active Stripe subscriptions, broken down by plan name",
			planLabels, nil,
		),
		mrrByPlan: prometheus.NewDesc(
			"stripe_subscription_mrr_by_plan",
			"Monthly recurring revenue by subscription plan name (gross, major units)",
			planLabels, nil,
		),
		netMRRByPlan: prometheus.NewDesc(
			"stripe_net_subscription_mrr_by_plan",
			"Monthly recurring revenue by subscription plan name (net of Stripe fees, major units)",
			planLabels, nil,
		),
		paymentsLast24hByPlan: prometheus.NewDesc(
			"stripe_successful_payments_last_24h_by_plan",
			"Number of successful Stripe payments in the last 24 hours, broken down by plan name",
			planLabels, nil,
		),
		revenueLast24hByPlan: prometheus.NewDesc(
			"stripe_total_revenue_last_24h_by_plan",
			"Total revenue from successful Stripe charges in the last 24 hours, broken down by plan name (gross, major units)",
			planLabels, nil,
		),
		netRevenueLast24hByPlan: prometheus.NewDesc(
			"stripe_net_revenue_last_24h_by_plan",
			"Net revenue from successful Stripe charges in the last 24 hours, broken down by plan name (major units)",
			planLabels, nil,
		),
	}
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector.
func (c *StripeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSubscriptions
	ch <- c.paymentsLast24h
	ch <- c.revenueLast24h
	ch <- c.avgPaymentLast24h
	ch <- c.feesLast24h
	ch <- c.netRevenueLast24h
	ch <- c.lastRefresh
	ch <- c.subscriptionsByPlan
	ch <- c.mrrByPlan
	ch <- c.netMRRByPlan
	ch <- c.paymentsLast24hByPlan
	ch <- c.revenueLast24hByPlan
	ch <- c.netRevenueLast24hByPlan
}

// Collect is called by the Prometheus registry when collecting metrics.
func (c *StripeCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Current()

	ch <- prometheus.MustNewConstMetric(c.activeSubscriptions, prometheus.GaugeValue, snap.ActiveSubscriptions)
	ch <- prometheus.MustNewConstMetric(c.paymentsLast24h, prometheus.GaugeValue, snap.PaymentsLast24h)
	ch <- prometheus.MustNewConstMetric(c.revenueLast24h, prometheus.GaugeValue, snap.RevenueLast24h)
	ch <- prometheus.MustNewConstMetric(c.avgPaymentLast24h, prometheus.GaugeValue, snap.AvgPaymentLast24h)
	ch <- prometheus.MustNewConstMetric(c.feesLast24h, prometheus.GaugeValue, snap.FeesLast24h)
	ch <- prometheus.MustNewConstMetric(c.netRevenueLast24h, prometheus.GaugeValue, snap.NetRevenueLast24h)

	var lastRefresh float64
	if !snap.GeneratedAt.IsZero() {
		lastRefresh = float64(snap.GeneratedAt.Unix())
	}
	ch <- prometheus.MustNewConstMetric(c.lastRefresh, prometheus.GaugeValue, lastRefresh)

	emitPlanSeries(ch, c.subscriptionsByPlan, snap.SubscriptionsByPlan)
	emitPlanSeries(ch, c.mrrByPlan, snap.MRRByPlan)
	emitPlanSeries(ch, c.netMRRByPlan, snap.NetMRRByPlan)
	emitPlanSeries(ch, c.paymentsLast24hByPlan, snap.PaymentsLast24hByPlan)
	emitPlanSeries(ch, c.revenueLast24hByPlan, snap.RevenueLast24hByPlan)
	emitPlanSeries(ch, c.netRevenueLast24hByPlan, snap.NetRevenueLast24hByPlan)
}

func emitPlanSeries(ch chan<- prometheus.Metric, desc *prometheus.Desc, values map[string]float64) {
	for planName, value := range values {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, planName)
	}
}
