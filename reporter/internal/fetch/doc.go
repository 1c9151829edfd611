// Package fetch holds the two upstream retrieval primitives shared by every
// source client.
//
// Paged walks a paginated collection from page 1 until a continuation
// predicate says stop. Predicates: FullPage (the API gives no total or
// cursor, so a full page is the only "more may exist" signal) and HasMore
// (the API returns an explicit flag). Sources can supply their own, such as
// the Statuspage resolved-after-window-start rule.
//
// Run fans a per-entity operation out across a fixed number of goroutines
// (Fanout.Limit, default 10) and returns results keyed by entity id. A failing
// entity never cancels its siblings; Results.Err joins every failure in input
// order.
package fetch
