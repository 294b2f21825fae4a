// Package stripeapi is a minimal typed client for the Stripe REST API,
// covering the read paths the exporter needs: active subscriptions,
// prices, products, recent charges, and the invoices that link charges
// back to subscription plans.
//
// # Pagination
//
// Every list call follows Stripe's cursor pagination (starting_after /
// has_more) until the collection is exhausted.
//
// # Error Taxonomy
//
// Failures are classified at the client boundary:
//
//   - *AuthError: 401/403. The credential is bad; retrying the same
//     call will not help.
//   - *RetryableError: 429, 5xx, or transport failures. Transient,
//     worth attempting again on the next cycle.
//   - *ParseError: a response is missing a required field or cannot
//     be decoded.
//
// The client never retries on its own; retry policy belongs to the
// refresh scheduler.
package stripeapi
