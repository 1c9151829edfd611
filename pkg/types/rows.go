package types

import (
	"strconv"
)

// Row is a flat output record. Columns and Values line up index for index and
// follow the JSON field order of the implementing struct.
type Row interface {
	Columns() []string
	Values() []string
}

// IncidentSummaryRow is one PagerDuty incident with response timings and the
// credited responder.
type IncidentSummaryRow struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Urgency            string    `json:"urgency"`
	EscalationPolicy   string    `json:"escalation_policy"`
	Service            string    `json:"service"`
	CreatedAt          Timestamp `json:"created_at"`
	TimeToAcknowledge  *int64    `json:"time_to_acknowledge"`
	TimeToResolve      *int64    `json:"time_to_resolve"`
	NumAcknowledgments int       `json:"num_acknowledgments"`
	NumUsersNotified   int       `json:"num_users_notified"`
	User               string    `json:"user"`
	OutOfHours         bool      `json:"out_of_hours"`
}

func (IncidentSummaryRow) Columns() []string {
	return []string{"id", "title", "urgency", "escalation_policy", "service", "created_at",
		"time_to_acknowledge", "time_to_resolve", "num_acknowledgments", "num_users_notified",
		"user", "out_of_hours"}
}

func (r IncidentSummaryRow) Values() []string {
	return []string{r.ID, r.Title, r.Urgency, r.EscalationPolicy, r.Service, r.CreatedAt.String(),
		optionalInt(r.TimeToAcknowledge), optionalInt(r.TimeToResolve),
		strconv.Itoa(r.NumAcknowledgments), strconv.Itoa(r.NumUsersNotified),
		r.User, strconv.FormatBool(r.OutOfHours)}
}

// SLORow is the uptime of one component on one day. Uptime is not clamped
// and goes negative when a day accumulates more than 24h of downtime.
type SLORow struct {
	Date       Timestamp `json:"date"`
	Component  string    `json:"component"`
	Uptime     float64   `json:"uptime"`
	NumOutages int       `json:"num_outages"`
}

func (SLORow) Columns() []string {
	return []string{"date", "component", "uptime", "num_outages"}
}

func (r SLORow) Values() []string {
	return []string{r.Date.String(), r.Component,
		strconv.FormatFloat(r.Uptime, 'f', -1, 64), strconv.Itoa(r.NumOutages)}
}

// OutageRow is one Pingdom check state interval.
type OutageRow struct {
	CheckID  int64     `json:"check_id"`
	Service  string    `json:"service"`
	TimeFrom Timestamp `json:"timefrom"`
	TimeTo   Timestamp `json:"timeto"`
	Status   string    `json:"status"`
	Tags     string    `json:"tags"`
}

func (OutageRow) Columns() []string {
	return []string{"check_id", "service", "timefrom", "timeto", "status", "tags"}
}

func (r OutageRow) Values() []string {
	return []string{strconv.FormatInt(r.CheckID, 10), r.Service, r.TimeFrom.String(),
		r.TimeTo.String(), r.Status, r.Tags}
}

// StatuspageIncidentRow is one Statuspage incident as seen by one of its
// affected components.
type StatuspageIncidentRow struct {
	Name          string    `json:"name"`
	ID            string    `json:"id"`
	CreatedAt     Timestamp `json:"created_at"`
	ResolvedAt    Timestamp `json:"resolved_at"`
	Duration      int64     `json:"duration"`
	ComponentName string    `json:"component_name"`
	ComponentID   string    `json:"component_id"`
	Group         string    `json:"group"`
	Impact        string    `json:"impact"`
	Description   string    `json:"description"`
}

func (StatuspageIncidentRow) Columns() []string {
	return []string{"name", "id", "created_at", "resolved_at", "duration", "component_name",
		"component_id", "group", "impact", "description"}
}

func (r StatuspageIncidentRow) Values() []string {
	return []string{r.Name, r.ID, r.CreatedAt.String(), r.ResolvedAt.String(),
		strconv.FormatInt(r.Duration, 10), r.ComponentName, r.ComponentID, r.Group,
		r.Impact, r.Description}
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
