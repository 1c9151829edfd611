package classify

import (
	"slices"
	"strings"

	"github.com/obsidianstack/slareport/pkg/types"
)

// Reason is the outcome of classifying one record.
type Reason string

const (
	ReasonKept            Reason = "kept"
	ReasonOngoing         Reason = "ongoing"
	ReasonFalsePositive   Reason = "false_positive"
	ReasonNoComponents    Reason = "no_components"
	ReasonOutsideWindow   Reason = "outside_window"
	ReasonExcludedService Reason = "excluded_service"
	ReasonLowUrgency      Reason = "low_urgency"
	ReasonNotDowntime     Reason = "not_downtime"
)

// falsePositiveMarker is matched case-insensitively against postmortems.
const falsePositiveMarker = "false positive"

// Rules toggles the individual exclusion checks. The zero value keeps
// everything.
type Rules struct {
	Ongoing       bool
	FalsePositive bool
	NoComponents  bool
	OutsideWindow bool

	// ExcludedServices drops records whose service name contains any entry.
	ExcludedServices []string
	// ExcludeLowUrgency drops records with urgency "low".
	ExcludeLowUrgency bool

	// DowntimeStatuses, when non-empty, drops records whose status is not
	// listed.
	DowntimeStatuses []string
}

// ComponentRules returns the rules for per-component availability reports.
func ComponentRules() Rules {
	return Rules{Ongoing: true, FalsePositive: true, NoComponents: true, OutsideWindow: true}
}

// IncidentRules returns the rules for the PagerDuty incident summary. The
// upstream query is already scoped to the window and incidents carry no
// components, so only the service and urgency checks apply.
func IncidentRules(excludedServices []string, excludeLowUrgency bool) Rules {
	return Rules{ExcludedServices: excludedServices, ExcludeLowUrgency: excludeLowUrgency}
}

// OutageRules returns the rules for SLOs derived from Pingdom check states.
func OutageRules(downtimeStatuses []string) Rules {
	return Rules{Ongoing: true, NoComponents: true, OutsideWindow: true, DowntimeStatuses: downtimeStatuses}
}

// Check returns the first matching exclusion reason for rec, or ReasonKept.
func Check(rec types.Record, w types.TimeWindow, r Rules) Reason {
	if r.Ongoing && rec.Ongoing() {
		return ReasonOngoing
	}
	if r.FalsePositive && strings.Contains(strings.ToLower(rec.Postmortem), falsePositiveMarker) {
		return ReasonFalsePositive
	}
	if r.NoComponents && len(rec.Components) == 0 {
		return ReasonNoComponents
	}
	if r.OutsideWindow && (rec.ResolvedAt == nil || !w.Covers(*rec.ResolvedAt)) {
		return ReasonOutsideWindow
	}
	for _, s := range r.ExcludedServices {
		if s != "" && strings.Contains(rec.Service, s) {
			return ReasonExcludedService
		}
	}
	if r.ExcludeLowUrgency && rec.Urgency == "low" {
		return ReasonLowUrgency
	}
	if len(r.DowntimeStatuses) > 0 && !slices.Contains(r.DowntimeStatuses, rec.Status) {
		return ReasonNotDowntime
	}
	return ReasonKept
}

// Result is the outcome of Filter.
type Result struct {
	Kept    []types.Record
	Skipped map[Reason]int
}

// SkippedTotal returns the number of records dropped for any reason.
func (r Result) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Filter classifies every record and keeps the survivors in input order.
func Filter(recs []types.Record, w types.TimeWindow, r Rules) Result {
	res := Result{Skipped: make(map[Reason]int)}
	for _, rec := range recs {
		reason := Check(rec, w, r)
		if reason == ReasonKept {
			res.Kept = append(res.Kept, rec)
			continue
		}
		res.Skipped[reason]++
	}
	return res
}
