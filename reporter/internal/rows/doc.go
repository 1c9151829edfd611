// Package rows flattens aggregates into the output rows the shipper writes.
// Every timestamp is bound to the Builder's format, so one report's rows are
// written consistently for its sink.
package rows
