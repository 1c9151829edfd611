package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/fetch"
)

var since = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testWindow(t *testing.T) types.TimeWindow {
	t.Helper()
	w, err := types.NewTimeWindow(since, since.AddDate(0, 0, 1))
	require.NoError(t, err)
	return w
}

func fetchCfg() config.FetchConfig {
	return config.FetchConfig{Concurrency: 2, HTTPTimeout: 5 * time.Second}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

// --- PagerDuty ---

func newPagerDuty(t *testing.T, mux *http.ServeMux) *PagerDuty {
	t.Helper()
	t.Setenv("TEST_PD_TOKEN", "pd-secret")
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	pd, err := NewPagerDuty(config.Source{
		BaseURL:  srv.URL,
		PageSize: 2,
		Auth:     config.AuthConfig{Mode: "token", TokenEnv: "TEST_PD_TOKEN"},
	}, fetchCfg())
	require.NoError(t, err)
	return pd
}

func pdIncidentJSON(id string) map[string]any {
	return map[string]any{
		"id": id, "title": "title " + id, "status": "resolved", "urgency": "high",
		"created_at":        "2024-03-01T10:00:00Z",
		"service":           map[string]string{"summary": "Payments"},
		"escalation_policy": map[string]string{"summary": "Primary"},
	}
}

func TestPagerDuty_IncidentsFollowsMore(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /incidents", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Token token=pd-secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("since"))
		assert.Equal(t, "2024-03-02", r.URL.Query().Get("until"))
		assert.Equal(t, "UTC", r.URL.Query().Get("time_zone"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("offset") {
		case "0":
			writeJSON(t, w, map[string]any{"incidents": []any{pdIncidentJSON("P1"), pdIncidentJSON("P2")}, "more": true})
		case "2":
			writeJSON(t, w, map[string]any{"incidents": []any{pdIncidentJSON("P3")}, "more": false})
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	recs, err := newPagerDuty(t, mux).Incidents(context.Background(), testWindow(t))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int32(2), calls.Load())

	r := recs[0]
	assert.Equal(t, "P1", r.ID)
	assert.Equal(t, "Payments", r.Service)
	assert.Equal(t, "Primary", r.EscalationPolicy)
	assert.Equal(t, "high", r.Urgency)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), r.CreatedAt)
}

func TestPagerDuty_MissingServiceIsSchemaError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /incidents", func(w http.ResponseWriter, _ *http.Request) {
		in := pdIncidentJSON("P1")
		delete(in, "service")
		writeJSON(t, w, map[string]any{"incidents": []any{in}})
	})

	_, err := newPagerDuty(t, mux).Incidents(context.Background(), testWindow(t))
	assert.True(t, apperr.Is(err, apperr.KindSchema))
}

func TestPagerDuty_LogEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /incidents/{id}/log_entries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("is_overview"))
		id := r.PathValue("id")
		writeJSON(t, w, map[string]any{"log_entries": []any{
			map[string]any{"type": "resolve_log_entry", "created_at": "2024-03-01T11:00:00Z", "agent": map[string]string{"summary": "Ana"}},
			map[string]any{"type": "acknowledge_log_entry", "created_at": "2024-03-01T10:05:00Z", "agent": map[string]string{"summary": "Ana"}},
			map[string]any{"type": "notify_log_entry", "created_at": "2024-03-01T10:01:00Z", "user": map[string]string{"summary": "Ana " + id}},
			map[string]any{"type": "trigger_log_entry", "created_at": "2024-03-01T10:00:00Z"},
		}})
	})

	got, err := newPagerDuty(t, mux).LogEntries(context.Background(), []string{"P1", "P2"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	p1 := got["P1"]
	require.Len(t, p1, 4)
	assert.Equal(t, types.LogResolve, p1[0].Type)
	assert.Equal(t, types.LogEntry{Type: types.LogAcknowledge, Actor: "Ana",
		CreatedAt: time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)}, p1[1])
	assert.Equal(t, "Ana P1", p1[2].Actor)
	assert.Equal(t, types.LogOther, p1[3].Type)
	assert.Equal(t, "Ana P2", got["P2"][2].Actor)
}

func TestPagerDuty_LogEntriesFailureNamesIncident(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /incidents/{id}/log_entries", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "P2" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		writeJSON(t, w, map[string]any{"log_entries": []any{}})
	})

	_, err := newPagerDuty(t, mux).LogEntries(context.Background(), []string{"P1", "P2", "P3"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
	assert.Contains(t, err.Error(), "entity P2")
	assert.Contains(t, err.Error(), "502")
}

func TestPagerDuty_Users(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			writeJSON(t, w, map[string]any{"users": []any{
				map[string]string{"name": "Ana", "time_zone": "Europe/London"},
				map[string]string{"name": "Ben", "time_zone": "America/New_York"},
			}, "more": true})
			return
		}
		writeJSON(t, w, map[string]any{"users": []any{map[string]string{"name": "Cy", "time_zone": "Asia/Tokyo"}}})
	})

	users, err := newPagerDuty(t, mux).Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "Asia/Tokyo", users[2].TimeZone)
}

// --- Pingdom ---

func TestPingdom_ChecksAndOutages(t *testing.T) {
	t.Setenv("TEST_PINGDOM_TOKEN", "pg-secret")
	w := testWindow(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /checks", func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pg-secret", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("include_tags"))
		writeJSON(t, rw, map[string]any{"checks": []any{
			map[string]any{"id": 11, "name": "checkout", "tags": []any{map[string]string{"name": "prod"}, map[string]string{"name": "eu"}}},
			map[string]any{"id": 22, "name": "search", "tags": []any{}},
		}})
	})
	mux.HandleFunc("GET /summary.outage/{id}", func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, strconv.FormatInt(w.Start.Unix(), 10), r.URL.Query().Get("from"))
		assert.Equal(t, strconv.FormatInt(w.End.Unix(), 10), r.URL.Query().Get("to"))
		from := since.Add(time.Hour).Unix()
		states := []any{
			map[string]any{"status": "up", "timefrom": from - 3600, "timeto": from},
			map[string]any{"status": "down", "timefrom": from, "timeto": from + 90},
		}
		if r.PathValue("id") == "22" {
			states = states[:1]
		}
		writeJSON(t, rw, map[string]any{"summary": map[string]any{"states": states}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewPingdom(config.Source{BaseURL: srv.URL, Auth: config.AuthConfig{Mode: "bearer", TokenEnv: "TEST_PINGDOM_TOKEN"}}, fetchCfg())
	require.NoError(t, err)

	checks, err := p.Checks(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, []string{"prod", "eu"}, checks[0].Tags)
	assert.Equal(t, types.ComponentRef{ID: "11", Name: "checkout"}, checks[0].Ref())

	recs, err := p.Outages(context.Background(), checks, w)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	down := recs[1]
	assert.Equal(t, types.KindOutageState, down.Kind)
	assert.Equal(t, "down", down.Status)
	assert.Equal(t, since.Add(time.Hour), down.CreatedAt)
	assert.Equal(t, int64(90), int64(down.Duration().Seconds()))
	assert.Equal(t, []types.ComponentRef{{ID: "11", Name: "checkout"}}, down.Components)
	assert.Equal(t, "search", recs[2].Name)
}

// --- Statuspage ---

func spIncidentJSON(id string, resolved *time.Time) map[string]any {
	var res any
	if resolved != nil {
		res = resolved.Format("2006-01-02T15:04:05.000Z")
	}
	return map[string]any{
		"id": id, "name": "incident " + id, "status": "resolved", "impact": "major",
		"created_at":  "2024-02-27T08:00:00.000Z",
		"resolved_at": res,
		"components":  []any{map[string]any{"id": "c1", "name": "API", "group_id": nil}},
		"incident_updates": []any{
			map[string]any{"status": "resolved", "body": "fixed", "created_at": "2024-02-27T09:00:00.000Z"},
		},
	}
}

func at(t time.Time) *time.Time { return &t }

func newStatuspage(t *testing.T, h http.Handler) *Statuspage {
	t.Helper()
	t.Setenv("TEST_SP_TOKEN", "sp-secret")
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	sp, err := NewStatuspage(config.Source{BaseURL: srv.URL, PageID: "pg1", PageSize: 2,
		Auth: config.AuthConfig{Mode: "oauth", TokenEnv: "TEST_SP_TOKEN"}}, fetchCfg())
	require.NoError(t, err)
	return sp
}

func TestStatuspage_IncidentsStopAtWindowStart(t *testing.T) {
	pages := map[string][]any{
		"1": {spIncidentJSON("i1", at(since.Add(30*time.Hour))), spIncidentJSON("i2", nil)},
		"2": {spIncidentJSON("i3", at(since.Add(12*time.Hour))), spIncidentJSON("i4", at(since.Add(2*time.Hour)))},
		"3": {spIncidentJSON("i5", at(since.Add(-time.Hour))), spIncidentJSON("i6", at(since))},
		"4": {spIncidentJSON("i7", at(since.Add(-48*time.Hour)))},
	}
	var (
		mu        sync.Mutex
		requested []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pages/pg1/incidents", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "OAuth sp-secret", r.Header.Get("Authorization"))
		page := r.URL.Query().Get("page")
		mu.Lock()
		requested = append(requested, page)
		mu.Unlock()
		writeJSON(t, w, pages[page])
	})

	recs, err := newStatuspage(t, mux).Incidents(context.Background(), since)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	// Page 3 is full but ends with an incident resolved exactly at the
	// window start, so page 4 is never requested.
	assert.Equal(t, []string{"1", "2", "3"}, requested)
	require.Len(t, recs, 6)
	assert.Nil(t, recs[1].ResolvedAt)
	assert.Equal(t, "fixed", recs[0].Updates[0].Body)
}

func TestStatuspage_IncidentsStopAtShortPage(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pages/pg1/incidents", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, []any{spIncidentJSON("i1", at(since.Add(5*time.Hour)))})
	})

	recs, err := newStatuspage(t, mux).Incidents(context.Background(), since)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatuspage_Components(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pages/pg1/components", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(t, w, []any{
				map[string]any{"id": "g1", "name": "Core", "group": true, "group_id": nil},
				map[string]any{"id": "c1", "name": "API", "group": false, "group_id": "g1"},
			})
		case "2":
			writeJSON(t, w, []any{map[string]any{"id": "c2", "name": "Docs"}})
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	})

	comps, err := newStatuspage(t, mux).Components(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.ComponentRef{
		{ID: "g1", Name: "Core", Group: true},
		{ID: "c1", Name: "API", GroupID: "g1"},
		{ID: "c2", Name: "Docs"},
	}, comps)
}

func TestStatuspage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    apperr.Kind
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}, apperr.KindTransport},
		{"unauthorised", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusUnauthorized)
		}, apperr.KindTransport},
		{"not json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = fmt.Fprint(w, "<html>")
		}, apperr.KindSchema},
		{"bad timestamp", func(w http.ResponseWriter, _ *http.Request) {
			in := spIncidentJSON("i1", nil)
			in["created_at"] = "yesterday"
			writeJSON(t, w, []any{in})
		}, apperr.KindSchema},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recs, err := newStatuspage(t, tc.handler).Incidents(context.Background(), since)
			require.Error(t, err)
			assert.Nil(t, recs)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestStatuspage_RequiresPageID(t *testing.T) {
	_, err := NewStatuspage(config.Source{}, fetchCfg())
	assert.Error(t, err)
}

func TestResolvedAfter(t *testing.T) {
	cont := ResolvedAfter(2, since)
	page := func(last *time.Time) types.Record { return types.Record{ResolvedAt: last} }

	assert.False(t, cont(fetchPage(page(at(since.Add(time.Hour))))), "short page")
	assert.True(t, cont(fetchPage(page(nil), page(at(since.Add(time.Second))))))
	assert.False(t, cont(fetchPage(page(nil), page(at(since)))), "resolved exactly at start")
	assert.True(t, cont(fetchPage(page(nil), page(nil))), "ongoing last record")
}

func fetchPage(items ...types.Record) fetch.Page[types.Record] {
	return fetch.Page[types.Record]{Number: 1, Items: items}
}
