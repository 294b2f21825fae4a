// Package scheduler drives the periodic fetch-aggregate-publish cycle.
//
// One cycle moves through Fetching, Aggregating, and Publishing; any
// failure lands in Backoff, which keeps the previously published
// snapshot untouched and simply waits for the next scheduled tick.
// There is no exponential backoff and no in-cycle retry. A rejected
// credential is logged loudly but never terminates the process: the
// exporter keeps serving its last good snapshot indefinitely.
package scheduler
