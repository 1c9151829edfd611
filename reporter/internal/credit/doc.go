// Package credit attributes a PagerDuty incident to a responder and decides
// whether it happened outside that responder's working hours.
//
// Log entries arrive newest first. Resolve puts them in chronological order
// before selecting, so the credited user depends only on timestamps and the
// configured Policy, never on how the upstream happened to order the page.
//
// Responder time zones come from a Roster, which loads the user list once
// per run on first use.
package credit
