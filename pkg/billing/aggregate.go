package billing

import (
	"time"

	"github.com/platinummonkey/stripe-exporter/pkg/stripeapi"
)

// ChargeWindow is the rolling window for the last-24h charge metrics
const ChargeWindow = 24 * time.Hour

// unknownPlanName labels subscriptions that carry no items at all, so
// the per-plan counts still sum to the global count.
const unknownPlanName = "unknown"

// FeeModel approximates Stripe's per-charge fee when the balance
// transaction is not available: a percentage of the gross plus a flat
// amount in major units.
type FeeModel struct {
	Percent float64
	Flat    float64
}

// ChargeFee returns the modeled fee for a gross amount in major units
func (m FeeModel) ChargeFee(gross float64) float64 {
	return gross*m.Percent + m.Flat
}

// Aggregate computes a metrics snapshot from one fetch pass. It is a
// pure function: the window cutoff is derived from now, and nothing in
// data is mutated.
func Aggregate(data *stripeapi.BillingData, fees FeeModel, now time.Time) *Snapshot {
	snap := NewEmptySnapshot()
	snap.GeneratedAt = now

	aggregateSubscriptions(snap, data, fees)
	aggregateCharges(snap, data, fees, now)

	return snap
}

// aggregateSubscriptions computes the subscription count and MRR metrics
func aggregateSubscriptions(snap *Snapshot, data *stripeapi.BillingData, fees FeeModel) {
	for i := range data.Subscriptions {
		sub := &data.Subscriptions[i]
		if sub.Status != stripeapi.SubscriptionStatusActive {
			continue
		}

		snap.ActiveSubscriptions++

		// Each subscription counts once, under the plan of its first
		// item, so per-plan counts sum to the global count. MRR is
		// accumulated across every item, weighted by quantity.
		countPlan := unknownPlanName

		for j := range sub.Items.Data {
			item := &sub.Items.Data[j]
			price := item.Price
			if price == nil {
				continue
			}

			planName := ResolvePlanName(price, data.Products)
			if j == 0 {
				countPlan = planName
			}

			quantity := item.Quantity
			if quantity <= 0 {
				quantity = 1
			}

			grossMonthly := minorToMajor(price.UnitAmount) * float64(quantity) * monthlyFactor(price.Recurring)
			netMonthly := grossMonthly*(1-fees.Percent) - fees.Flat*float64(quantity)

			snap.MRRByPlan[planName] += grossMonthly
			snap.NetMRRByPlan[planName] += netMonthly
		}

		snap.SubscriptionsByPlan[countPlan]++
	}
}

// aggregateCharges computes the last-24h charge metrics
func aggregateCharges(snap *Snapshot, data *stripeapi.BillingData, fees FeeModel, now time.Time) {
	cutoff := now.Add(-ChargeWindow)

	for i := range data.Charges {
		charge := &data.Charges[i]
		if charge.Status != stripeapi.ChargeStatusSucceeded || !charge.Paid {
			continue
		}
		created := charge.CreatedAt()
		if created.Before(cutoff) || created.After(now) {
			continue
		}

		gross := minorToMajor(charge.Amount)
		var fee, net float64
		if bt := charge.FeeDetails(); bt != nil {
			fee = minorToMajor(bt.Fee)
			net = minorToMajor(bt.Net)
		} else {
			fee = fees.ChargeFee(gross)
			net = gross - fee
		}

		snap.PaymentsLast24h++
		snap.RevenueLast24h += gross
		snap.FeesLast24h += fee
		snap.NetRevenueLast24h += net

		// Charges whose invoice has no resolvable subscription plan
		// stay in the global totals only.
		planName, ok := chargePlanName(charge, data)
		if !ok {
			continue
		}
		snap.PaymentsLast24hByPlan[planName]++
		snap.RevenueLast24hByPlan[planName] += gross
		snap.NetRevenueLast24hByPlan[planName] += net
	}

	if snap.PaymentsLast24h > 0 {
		snap.AvgPaymentLast24h = snap.RevenueLast24h / snap.PaymentsLast24h
	}
}

// chargePlanName resolves the plan a charge billed, via its invoice's
// subscription line item
func chargePlanName(charge *stripeapi.Charge, data *stripeapi.BillingData) (string, bool) {
	if charge.InvoiceID == "" {
		return "", false
	}
	invoice, ok := data.Invoices[charge.InvoiceID]
	if !ok {
		return "", false
	}

	for i := range invoice.Lines.Data {
		line := &invoice.Lines.Data[i]
		if line.Type != stripeapi.InvoiceLineTypeSubscription || line.Price == nil {
			continue
		}
		return ResolvePlanName(line.Price, data.Products), true
	}
	return "", false
}

// ResolvePlanName resolves a price to its display name: nickname, then
// product name, then the raw price id.
func ResolvePlanName(price *stripeapi.Price, products map[string]stripeapi.Product) string {
	if price.Nickname != "" {
		return price.Nickname
	}
	if product, ok := products[price.ProductID]; ok && product.Name != "" {
		return product.Name
	}
	return price.ID
}

// monthlyFactor converts a price's billing cadence to a monthly rate
func monthlyFactor(r *stripeapi.Recurring) float64 {
	if r == nil {
		return 1
	}

	var factor float64
	switch r.Interval {
	case "day":
		factor = 365.25 / 12
	case "week":
		factor = 52.0 / 12
	case "month":
		factor = 1
	case "year":
		factor = 1.0 / 12
	default:
		factor = 1
	}

	if r.IntervalCount > 1 {
		factor /= float64(r.IntervalCount)
	}
	return factor
}

// minorToMajor converts minor currency units (cents) to major units
func minorToMajor(amount int64) float64 {
	return float64(amount) / 100
}
