// Package metrics records per-report run statistics on a private Prometheus
// registry and exports them when a run ends: to a node-exporter textfile,
// to a Pushgateway, or both. A batch job has no scrape endpoint of its own.
package metrics
