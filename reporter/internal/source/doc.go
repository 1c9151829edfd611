// Package source fetches raw records from the upstream APIs and normalises
// them into types.Record.
//
// Implemented sources: PagerDuty REST v2 (pagerduty.go), Pingdom 3.1
// (pingdom.go) and Statuspage v1 (statuspage.go). Each is built from a
// config.Source and shares the client in client.go, which injects the
// upstream's auth header, paces requests through a rate.Limiter and maps
// failures onto the apperr taxonomy: network errors and non-2xx answers are
// transport errors, undecodable bodies and bad timestamps are schema errors.
//
// Listings go through fetch.Paged; per-entity lookups (log entries, outage
// summaries) go through fetch.Run.
package source
