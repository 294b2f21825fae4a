// Package billing derives the exported business metrics from raw Stripe
// records.
//
// # Aggregation
//
// Aggregate is a pure function from one fetch pass (subscriptions,
// prices, products, charges, invoices) to an immutable Snapshot. All
// monetary values are converted from minor units (cents) to major units
// exactly once, here.
//
// # Plan Display Names
//
// A plan's display name resolves as price nickname, then product name,
// then the raw price id. The resolution is deterministic; a failed
// product lookup simply falls back down the chain.
//
// # MRR Normalization
//
// Recurring amounts are normalized to a monthly rate: daily and weekly
// prices are scaled up, yearly prices divided by twelve, and multi-cycle
// intervals (e.g. "every 3 months") divided by their interval count.
package billing
