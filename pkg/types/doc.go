// Package types defines the domain types shared by every report stage:
// the reporting window, raw upstream records, component catalogs, PagerDuty
// log entries and the flat output rows handed to the shipper.
//
// These are the canonical in-memory representations, separate from the
// upstream JSON shapes decoded in reporter/internal/source.
package types
