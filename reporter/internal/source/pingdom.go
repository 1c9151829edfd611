package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/fetch"
)

// PingdomBaseURL is the public 3.1 API root.
const PingdomBaseURL = "https://api.pingdom.com/api/3.1"

// Pingdom reads uptime checks and their outage summaries.
type Pingdom struct {
	c *client
}

// NewPingdom returns a Pingdom source for src.
func NewPingdom(src config.Source, fc config.FetchConfig) (*Pingdom, error) {
	c, err := newClient("pingdom", PingdomBaseURL, src, fc)
	if err != nil {
		return nil, err
	}
	return &Pingdom{c: c}, nil
}

// Check is one Pingdom uptime check.
type Check struct {
	ID   int64
	Name string
	Tags []string
}

// Ref returns the check as a catalog component.
func (c Check) Ref() types.ComponentRef {
	return types.ComponentRef{ID: strconv.FormatInt(c.ID, 10), Name: c.Name}
}

type pdmTag struct {
	Name string `json:"name"`
}

type pdmCheck struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Tags []pdmTag `json:"tags"`
}

type pdmState struct {
	Status   string `json:"status"`
	TimeFrom int64  `json:"timefrom"`
	TimeTo   int64  `json:"timeto"`
}

type pdmOutageSummary struct {
	Summary struct {
		States []pdmState `json:"states"`
	} `json:"summary"`
}

// Checks lists every check with its tags.
func (p *Pingdom) Checks(ctx context.Context) ([]Check, error) {
	var body struct {
		Checks []pdmCheck `json:"checks"`
	}
	if err := p.c.getJSON(ctx, "/checks", url.Values{"include_tags": {"true"}}, &body); err != nil {
		return nil, fmt.Errorf("pingdom checks: %w", err)
	}
	out := make([]Check, len(body.Checks))
	for i, c := range body.Checks {
		tags := make([]string, len(c.Tags))
		for j, t := range c.Tags {
			tags[j] = t.Name
		}
		out[i] = Check{ID: c.ID, Name: c.Name, Tags: tags}
	}
	return out, nil
}

// Outages fetches the state history of every check over w and returns one
// record per state, checks in input order. Any check whose summary cannot be
// fetched fails the call.
func (p *Pingdom) Outages(ctx context.Context, checks []Check, w types.TimeWindow) ([]types.Record, error) {
	ids := make([]int64, len(checks))
	for i, c := range checks {
		ids[i] = c.ID
	}
	res := fetch.Run(ctx, p.c.fanout, ids, func(ctx context.Context, id int64) ([]pdmState, error) {
		return p.states(ctx, id, w)
	})
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("pingdom outages: %w", err)
	}

	var out []types.Record
	for _, c := range checks {
		o, _ := res.Get(c.ID)
		for _, s := range o.Value {
			if s.TimeTo < s.TimeFrom {
				return nil, apperr.Schema("pingdom outage", fmt.Sprintf("check %d: state ends before it starts", c.ID), nil)
			}
			from := time.Unix(s.TimeFrom, 0).UTC()
			to := time.Unix(s.TimeTo, 0).UTC()
			out = append(out, types.Record{
				ID:         fmt.Sprintf("%d-%d", c.ID, s.TimeFrom),
				Kind:       types.KindOutageState,
				Name:       c.Name,
				CreatedAt:  from,
				ResolvedAt: &to,
				Status:     s.Status,
				Components: []types.ComponentRef{c.Ref()},
				Tags:       c.Tags,
			})
		}
	}
	return out, nil
}

func (p *Pingdom) states(ctx context.Context, id int64, w types.TimeWindow) ([]pdmState, error) {
	q := url.Values{
		"from": {strconv.FormatInt(w.Start.Unix(), 10)},
		"to":   {strconv.FormatInt(w.End.Unix(), 10)},
	}
	var body pdmOutageSummary
	if err := p.c.getJSON(ctx, "/summary.outage/"+strconv.FormatInt(id, 10), q, &body); err != nil {
		return nil, err
	}
	return body.Summary.States, nil
}
