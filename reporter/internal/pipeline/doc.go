// Package pipeline runs the configured reports end to end.
//
// Each report kind wires a source to the classifier, the aggregator or the
// credit resolver, and the row builder, then hands the rows to the shipper
// as one batch per window or per day. A Runner executes every report once
// per call and records the outcome on a metrics.Recorder.
package pipeline
