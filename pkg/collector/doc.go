// Package collector holds the current metrics snapshot and exposes it
// as a prometheus.Collector.
//
// The snapshot store is an atomic pointer swap: the scheduler publishes
// a fully-built snapshot, scrapes read whichever snapshot is current,
// and neither side ever blocks the other or observes a partial update.
package collector
