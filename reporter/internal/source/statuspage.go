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

const (
	// StatuspageBaseURL is the public v1 API root.
	StatuspageBaseURL = "https://api.statuspage.io/v1"
	// statuspagePageSize is the API's maximum per_page.
	statuspagePageSize = 100
)

// Statuspage reads one page's components and incidents.
type Statuspage struct {
	c        *client
	pageID   string
	pageSize int
}

// NewStatuspage returns a Statuspage source for src.
func NewStatuspage(src config.Source, fc config.FetchConfig) (*Statuspage, error) {
	if src.PageID == "" {
		return nil, fmt.Errorf("source statuspage: page id is required")
	}
	c, err := newClient("statuspage", StatuspageBaseURL, src, fc)
	if err != nil {
		return nil, err
	}
	size := src.PageSize
	if size <= 0 {
		size = statuspagePageSize
	}
	return &Statuspage{c: c, pageID: src.PageID, pageSize: size}, nil
}

type spComponent struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	GroupID *string `json:"group_id"`
	Group   bool    `json:"group"`
}

func (c spComponent) ref() types.ComponentRef {
	ref := types.ComponentRef{ID: c.ID, Name: c.Name, Group: c.Group}
	if c.GroupID != nil {
		ref.GroupID = *c.GroupID
	}
	return ref
}

type spUpdate struct {
	Status    string `json:"status"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

type spIncident struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Status         string        `json:"status"`
	Impact         string        `json:"impact"`
	CreatedAt      string        `json:"created_at"`
	ResolvedAt     *string       `json:"resolved_at"`
	PostmortemBody *string       `json:"postmortem_body"`
	Components     []spComponent `json:"components"`
	Updates        []spUpdate    `json:"incident_updates"`
}

func (s *Statuspage) path(resource string) string {
	return "/pages/" + url.PathEscape(s.pageID) + "/" + resource
}

func (s *Statuspage) query(page int) url.Values {
	return url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(s.pageSize)}}
}

// Components lists the page's components, group containers included, in
// upstream order.
func (s *Statuspage) Components(ctx context.Context) ([]types.ComponentRef, error) {
	raw, err := fetch.Paged(ctx, func(ctx context.Context, page int) (fetch.Page[spComponent], error) {
		var body []spComponent
		if err := s.c.getJSON(ctx, s.path("components"), s.query(page), &body); err != nil {
			return fetch.Page[spComponent]{}, err
		}
		return fetch.Page[spComponent]{Number: page, Items: body}, nil
	}, fetch.FullPage[spComponent](s.pageSize))
	if err != nil {
		return nil, fmt.Errorf("statuspage components: %w", err)
	}

	out := make([]types.ComponentRef, len(raw))
	for i, c := range raw {
		out[i] = c.ref()
	}
	return out, nil
}

// Incidents pages back through incidents, newest first, until a page is
// short or its oldest incident resolved at or before since.
func (s *Statuspage) Incidents(ctx context.Context, since time.Time) ([]types.Record, error) {
	recs, err := fetch.Paged(ctx, func(ctx context.Context, page int) (fetch.Page[types.Record], error) {
		var body []spIncident
		if err := s.c.getJSON(ctx, s.path("incidents"), s.query(page), &body); err != nil {
			return fetch.Page[types.Record]{}, err
		}
		items := make([]types.Record, 0, len(body))
		for _, in := range body {
			rec, err := in.record()
			if err != nil {
				return fetch.Page[types.Record]{}, err
			}
			items = append(items, rec)
		}
		return fetch.Page[types.Record]{Number: page, Items: items}, nil
	}, ResolvedAfter(s.pageSize, since))
	if err != nil {
		return nil, fmt.Errorf("statuspage incidents: %w", err)
	}
	return recs, nil
}

// ResolvedAfter continues while a page is full and its last, least recent,
// record resolved strictly after since. A still-ongoing last record has not
// reached back past since, so paging goes on.
func ResolvedAfter(size int, since time.Time) fetch.ContinueFunc[types.Record] {
	return func(p fetch.Page[types.Record]) bool {
		if len(p.Items) != size {
			return false
		}
		last := p.Items[len(p.Items)-1]
		return last.ResolvedAt == nil || last.ResolvedAt.After(since)
	}
}

func (in spIncident) record() (types.Record, error) {
	op := "statuspage incident " + in.ID
	if in.ID == "" {
		return types.Record{}, apperr.Schema("statuspage incident", "missing id", nil)
	}
	created, err := parseTime(op, "created_at", in.CreatedAt)
	if err != nil {
		return types.Record{}, err
	}
	resolved, err := parseOptionalTime(op, "resolved_at", in.ResolvedAt)
	if err != nil {
		return types.Record{}, err
	}

	rec := types.Record{
		ID:         in.ID,
		Kind:       types.KindIncident,
		Name:       in.Name,
		CreatedAt:  created,
		ResolvedAt: resolved,
		Status:     in.Status,
		Impact:     in.Impact,
		Components: make([]types.ComponentRef, len(in.Components)),
		Updates:    make([]types.Update, len(in.Updates)),
	}
	if in.PostmortemBody != nil {
		rec.Postmortem = *in.PostmortemBody
	}
	for i, c := range in.Components {
		rec.Components[i] = c.ref()
	}
	for i, u := range in.Updates {
		at, err := parseTime(op, "incident_updates.created_at", u.CreatedAt)
		if err != nil {
			return types.Record{}, err
		}
		rec.Updates[i] = types.Update{Status: u.Status, Body: u.Body, CreatedAt: at}
	}
	return rec, nil
}
