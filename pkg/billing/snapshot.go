package billing

import "time"

// Snapshot is the full set of metric values produced by one refresh
// cycle. It is built off to the side and never mutated after Aggregate
// returns, so readers may share it freely.
type Snapshot struct {
	GeneratedAt time.Time

	// Scalar metrics
	ActiveSubscriptions float64
	PaymentsLast24h     float64
	RevenueLast24h      float64
	AvgPaymentLast24h   float64
	FeesLast24h         float64
	NetRevenueLast24h   float64

	// Per-plan metrics, keyed by plan display name
	SubscriptionsByPlan     map[string]float64
	MRRByPlan               map[string]float64
	NetMRRByPlan            map[string]float64
	PaymentsLast24hByPlan   map[string]float64
	RevenueLast24hByPlan    map[string]float64
	NetRevenueLast24hByPlan map[string]float64
}

// NewEmptySnapshot returns a zero-valued snapshot so the exposition is
// stable before the first refresh completes.
func NewEmptySnapshot() *Snapshot {
	return &Snapshot{
		SubscriptionsByPlan:     map[string]float64{},
		MRRByPlan:               map[string]float64{},
		NetMRRByPlan:            map[string]float64{},
		PaymentsLast24hByPlan:   map[string]float64{},
		RevenueLast24hByPlan:    map[string]float64{},
		NetRevenueLast24hByPlan: map[string]float64{},
	}
}
