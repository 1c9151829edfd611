// Package classify decides which raw records count toward a report.
//
// Check applies an ordered set of exclusion rules and returns the first
// Reason that matches, or ReasonKept. Filter runs Check over a batch and
// tallies skips per reason so the pipeline can log and export them.
package classify
