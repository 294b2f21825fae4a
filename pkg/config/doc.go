// Package config loads exporter configuration from environment variables.
//
// The only required variable is STRIPE_API_KEY; everything else has a
// sensible default. A missing key is a fatal startup error; the process
// must not start serving metrics it can never populate.
package config
