package types

import (
	"sort"
	"time"
)

// RecordKind discriminates the upstream shapes folded into Record.
type RecordKind int

const (
	// KindIncident is a PagerDuty or Statuspage incident.
	KindIncident RecordKind = iota
	// KindOutageState is one state interval from a Pingdom outage summary.
	KindOutageState
)

func (k RecordKind) String() string {
	switch k {
	case KindIncident:
		return "incident"
	case KindOutageState:
		return "outage_state"
	default:
		return "unknown"
	}
}

// Record is a raw incident or outage state as fetched for one run.
// All instants are UTC.
type Record struct {
	ID   string
	Kind RecordKind
	Name string

	CreatedAt time.Time
	// ResolvedAt is nil while the record is ongoing.
	ResolvedAt *time.Time

	Components []ComponentRef

	Status     string
	Impact     string
	Postmortem string
	Updates    []Update

	// PagerDuty incident fields.
	Service          string
	Urgency          string
	EscalationPolicy string

	// Pingdom check tags.
	Tags []string
}

// Ongoing reports whether the record has no resolution instant.
func (r Record) Ongoing() bool { return r.ResolvedAt == nil }

// Duration returns ResolvedAt - CreatedAt, or zero for ongoing records.
func (r Record) Duration() time.Duration {
	if r.ResolvedAt == nil {
		return 0
	}
	return r.ResolvedAt.Sub(r.CreatedAt)
}

// Update is one entry in a Statuspage incident's update history.
type Update struct {
	Status    string
	Body      string
	CreatedAt time.Time
}

// ChronologicalUpdates returns the updates oldest first. Upstream delivers
// them newest first; equal timestamps keep their relative delivered order
// reversed.
func (r Record) ChronologicalUpdates() []Update {
	out := make([]Update, len(r.Updates))
	for i, u := range r.Updates {
		out[len(r.Updates)-1-i] = u
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// LogEntryType is the normalised PagerDuty log entry type.
type LogEntryType string

const (
	LogAcknowledge LogEntryType = "acknowledge"
	LogNotify      LogEntryType = "notify"
	LogResolve     LogEntryType = "resolve"
	LogOther       LogEntryType = "other"
)

// LogEntry is one PagerDuty incident timeline entry. Actor is the
// acknowledging agent for acknowledge entries and the notified user for
// notify entries.
type LogEntry struct {
	Type      LogEntryType
	CreatedAt time.Time
	Actor     string
}
