package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/credit"
	"github.com/obsidianstack/slareport/reporter/internal/fetch"
)

const (
	// PagerDutyBaseURL is the public REST v2 root.
	PagerDutyBaseURL = "https://api.pagerduty.com"
	// pagerDutyPageSize is the API's maximum limit.
	pagerDutyPageSize = 100
)

// PagerDuty reads incidents, their log entries and the user roster.
type PagerDuty struct {
	c     *client
	limit int
}

// NewPagerDuty returns a PagerDuty source for src.
func NewPagerDuty(src config.Source, fc config.FetchConfig) (*PagerDuty, error) {
	c, err := newClient("pagerduty", PagerDutyBaseURL, src, fc)
	if err != nil {
		return nil, err
	}
	limit := src.PageSize
	if limit <= 0 {
		limit = pagerDutyPageSize
	}
	return &PagerDuty{c: c, limit: limit}, nil
}

type pdRef struct {
	Summary string `json:"summary"`
}

type pdIncident struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Status           string `json:"status"`
	Urgency          string `json:"urgency"`
	CreatedAt        string `json:"created_at"`
	Service          *pdRef `json:"service"`
	EscalationPolicy *pdRef `json:"escalation_policy"`
}

type pdIncidentPage struct {
	Incidents []pdIncident `json:"incidents"`
	More      bool         `json:"more"`
}

type pdLogEntry struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Agent     *pdRef `json:"agent"`
	User      *pdRef `json:"user"`
}

type pdLogEntryPage struct {
	LogEntries []pdLogEntry `json:"log_entries"`
	More       bool         `json:"more"`
}

type pdUser struct {
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
}

type pdUserPage struct {
	Users []pdUser `json:"users"`
	More  bool     `json:"more"`
}

// offsetQuery returns the limit/offset pair for a 1-based page number.
func (p *PagerDuty) offsetQuery(q url.Values, page int) url.Values {
	q.Set("limit", strconv.Itoa(p.limit))
	q.Set("offset", strconv.Itoa((page-1)*p.limit))
	return q
}

// Incidents returns every incident created in w, as the API scopes
// since/until.
func (p *PagerDuty) Incidents(ctx context.Context, w types.TimeWindow) ([]types.Record, error) {
	raw, err := fetch.Paged(ctx, func(ctx context.Context, page int) (fetch.Page[pdIncident], error) {
		q := p.offsetQuery(url.Values{
			"since":     {w.Start.Format(types.DateLayout)},
			"until":     {w.End.Format(types.DateLayout)},
			"time_zone": {"UTC"},
		}, page)
		var body pdIncidentPage
		if err := p.c.getJSON(ctx, "/incidents", q, &body); err != nil {
			return fetch.Page[pdIncident]{}, err
		}
		return fetch.Page[pdIncident]{Number: page, Items: body.Incidents, More: body.More}, nil
	}, fetch.HasMore[pdIncident]())
	if err != nil {
		return nil, fmt.Errorf("pagerduty incidents: %w", err)
	}

	out := make([]types.Record, 0, len(raw))
	for _, in := range raw {
		rec, err := in.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (in pdIncident) record() (types.Record, error) {
	const op = "pagerduty incident"
	if in.ID == "" {
		return types.Record{}, apperr.Schema(op, "missing id", nil)
	}
	if in.Service == nil || in.EscalationPolicy == nil {
		return types.Record{}, apperr.Schema(op, fmt.Sprintf("%s: missing service or escalation_policy", in.ID), nil)
	}
	created, err := parseTime(op, "created_at", in.CreatedAt)
	if err != nil {
		return types.Record{}, err
	}
	return types.Record{
		ID:               in.ID,
		Kind:             types.KindIncident,
		Name:             in.Title,
		CreatedAt:        created,
		Status:           in.Status,
		Service:          in.Service.Summary,
		Urgency:          in.Urgency,
		EscalationPolicy: in.EscalationPolicy.Summary,
	}, nil
}

// LogEntries fetches the timeline of every incident in ids, newest first as
// delivered. Any incident whose timeline cannot be fetched fails the call.
func (p *PagerDuty) LogEntries(ctx context.Context, ids []string) (map[string][]types.LogEntry, error) {
	res := fetch.Run(ctx, p.c.fanout, ids, p.logEntries)
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("pagerduty log entries: %w", err)
	}
	return res.Values(), nil
}

func (p *PagerDuty) logEntries(ctx context.Context, id string) ([]types.LogEntry, error) {
	path := "/incidents/" + url.PathEscape(id) + "/log_entries"
	raw, err := fetch.Paged(ctx, func(ctx context.Context, page int) (fetch.Page[pdLogEntry], error) {
		q := p.offsetQuery(url.Values{"is_overview": {"false"}}, page)
		var body pdLogEntryPage
		if err := p.c.getJSON(ctx, path, q, &body); err != nil {
			return fetch.Page[pdLogEntry]{}, err
		}
		return fetch.Page[pdLogEntry]{Number: page, Items: body.LogEntries, More: body.More}, nil
	}, fetch.HasMore[pdLogEntry]())
	if err != nil {
		return nil, err
	}

	out := make([]types.LogEntry, 0, len(raw))
	for _, e := range raw {
		entry, err := e.entry(id)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (e pdLogEntry) entry(incident string) (types.LogEntry, error) {
	op := "pagerduty log entry for " + incident
	created, err := parseTime(op, "created_at", e.CreatedAt)
	if err != nil {
		return types.LogEntry{}, err
	}
	out := types.LogEntry{CreatedAt: created}
	switch e.Type {
	case "acknowledge_log_entry":
		if e.Agent == nil {
			return types.LogEntry{}, apperr.Schema(op, "acknowledge entry without agent", nil)
		}
		out.Type, out.Actor = types.LogAcknowledge, e.Agent.Summary
	case "notify_log_entry":
		if e.User == nil {
			return types.LogEntry{}, apperr.Schema(op, "notify entry without user", nil)
		}
		out.Type, out.Actor = types.LogNotify, e.User.Summary
	case "resolve_log_entry":
		out.Type = types.LogResolve
		if e.Agent != nil {
			out.Actor = e.Agent.Summary
		}
	default:
		out.Type = types.LogOther
	}
	return out, nil
}

// Users lists every user with their time zone. It satisfies
// credit.UserLister.
func (p *PagerDuty) Users(ctx context.Context) ([]credit.User, error) {
	raw, err := fetch.Paged(ctx, func(ctx context.Context, page int) (fetch.Page[pdUser], error) {
		var body pdUserPage
		if err := p.c.getJSON(ctx, "/users", p.offsetQuery(url.Values{}, page), &body); err != nil {
			return fetch.Page[pdUser]{}, err
		}
		return fetch.Page[pdUser]{Number: page, Items: body.Users, More: body.More}, nil
	}, fetch.HasMore[pdUser]())
	if err != nil {
		return nil, fmt.Errorf("pagerduty users: %w", err)
	}

	out := make([]credit.User, len(raw))
	for i, u := range raw {
		out[i] = credit.User{Name: u.Name, TimeZone: u.TimeZone}
	}
	return out, nil
}
