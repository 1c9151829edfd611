// Package compute turns classified records into per-day, per-component
// downtime and uptime figures.
//
// catalog.go indexes the upstream component list once per run so records,
// which only carry component ids, can be attributed to names and groups.
//
// downtime.go holds the pure pieces: BucketByDay keys records by resolution
// date, Downtime accumulates whole-second durations per component and Uptime
// applies 100 - sum/86400*100.
//
// engine.go walks every day of a window and builds a fresh accumulator for
// each, so repeated calls over the same input give the same result.
//
// Uptime is deliberately not clamped: overlapping or multi-day outages push it
// below zero. A record listing several components counts in full against
// each of them.
package compute
