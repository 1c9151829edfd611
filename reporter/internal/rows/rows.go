package rows

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/compute"
	"github.com/obsidianstack/slareport/reporter/internal/credit"
)

// descriptionSep joins Statuspage update bodies into one cell.
const descriptionSep = "\t"

// Builder maps records and aggregates to rows.
type Builder struct {
	Format types.TimeFormat
}

func (b Builder) stamp(t time.Time) types.Timestamp {
	return types.NewTimestamp(t, b.Format)
}

// IncidentSummary builds the PagerDuty summary row for rec credited as c.
func (b Builder) IncidentSummary(rec types.Record, c credit.Credit) types.IncidentSummaryRow {
	return types.IncidentSummaryRow{
		ID:                 rec.ID,
		Title:              rec.Name,
		Urgency:            rec.Urgency,
		EscalationPolicy:   rec.EscalationPolicy,
		Service:            rec.Service,
		CreatedAt:          b.stamp(rec.CreatedAt),
		TimeToAcknowledge:  c.TimeToAcknowledge,
		TimeToResolve:      c.TimeToResolve,
		NumAcknowledgments: c.NumAcknowledgments,
		NumUsersNotified:   c.NumUsersNotified,
		User:               c.User,
		OutOfHours:         c.OutOfHours,
	}
}

// SLO emits one row per day and component, days in order and components in
// catalog order.
func (b Builder) SLO(days []compute.DaySummary) []types.SLORow {
	var out []types.SLORow
	for _, d := range days {
		for _, name := range d.Downtime.Components() {
			durations := d.Downtime.Durations(name)
			out = append(out, types.SLORow{
				Date:       b.stamp(d.Date),
				Component:  name,
				Uptime:     compute.Uptime(durations),
				NumOutages: len(durations),
			})
		}
	}
	return out
}

// OutageDetail builds the row for one Pingdom check state. The record's
// single component is the check itself.
func (b Builder) OutageDetail(rec types.Record) (types.OutageRow, error) {
	if len(rec.Components) != 1 {
		return types.OutageRow{}, apperr.Schema("rows",
			fmt.Sprintf("outage %s: want exactly one check, got %d", rec.ID, len(rec.Components)), nil)
	}
	check := rec.Components[0]
	id, err := strconv.ParseInt(check.ID, 10, 64)
	if err != nil {
		return types.OutageRow{}, apperr.Schema("rows", fmt.Sprintf("outage %s: check id %q", rec.ID, check.ID), err)
	}
	if rec.ResolvedAt == nil {
		return types.OutageRow{}, apperr.Schema("rows", fmt.Sprintf("outage %s: state has no end", rec.ID), nil)
	}
	return types.OutageRow{
		CheckID:  id,
		Service:  check.Name,
		TimeFrom: b.stamp(rec.CreatedAt),
		TimeTo:   b.stamp(*rec.ResolvedAt),
		Status:   rec.Status,
		Tags:     strings.Join(rec.Tags, ","),
	}, nil
}

// StatuspageIncident emits one row per component the incident affected. The
// group column comes from cat; a component missing from it is a lookup error.
func (b Builder) StatuspageIncident(rec types.Record, cat *compute.Catalog) ([]types.StatuspageIncidentRow, error) {
	if rec.ResolvedAt == nil {
		return nil, apperr.Schema("rows", fmt.Sprintf("incident %s is unresolved", rec.ID), nil)
	}

	updates := rec.ChronologicalUpdates()
	bodies := make([]string, len(updates))
	for i, u := range updates {
		bodies[i] = u.Body
	}
	description := strings.Join(bodies, descriptionSep)

	out := make([]types.StatuspageIncidentRow, 0, len(rec.Components))
	for _, c := range rec.Components {
		group, err := cat.GroupName(c.ID)
		if err != nil {
			return nil, fmt.Errorf("incident %s: %w", rec.ID, err)
		}
		out = append(out, types.StatuspageIncidentRow{
			Name:          rec.Name,
			ID:            rec.ID,
			CreatedAt:     b.stamp(rec.CreatedAt),
			ResolvedAt:    b.stamp(*rec.ResolvedAt),
			Duration:      compute.DurationSeconds(rec),
			ComponentName: c.Name,
			ComponentID:   c.ID,
			Group:         group,
			Impact:        rec.Impact,
			Description:   description,
		})
	}
	return out, nil
}

// AsRows widens a typed row slice for the shipper.
func AsRows[R types.Row](in []R) []types.Row {
	out := make([]types.Row, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}
