package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/classify"
	"github.com/obsidianstack/slareport/reporter/internal/compute"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/credit"
	"github.com/obsidianstack/slareport/reporter/internal/rows"
)

// datedRow is an output row with the day it is filed under.
type datedRow struct {
	day time.Time
	row types.Row
}

// output is what one report kind produces before shipping.
type output struct {
	fetched int
	skipped map[classify.Reason]int
	rows    []datedRow
}

// job carries the per-run inputs shared by every report kind.
type job struct {
	report  config.Report
	window  types.TimeWindow
	builder rows.Builder
	log     *slog.Logger
}

// fatal reports whether a record error must abort the report at once rather
// than be collected with its siblings.
func fatal(err error) bool {
	return apperr.Is(err, apperr.KindTransport) || apperr.Is(err, apperr.KindLookup) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func pagerDutyIncidents(ctx context.Context, src IncidentSource, j job) (output, error) {
	recs, err := src.Incidents(ctx, j.window)
	if err != nil {
		return output{}, err
	}
	rules := classify.IncidentRules(j.report.Rules.ExcludeServices, j.report.Rules.ExcludeLowUrgency)
	res := classify.Filter(recs, j.window, rules)
	out := output{fetched: len(recs), skipped: res.Skipped}

	ids := make([]string, len(res.Kept))
	for i, rec := range res.Kept {
		ids[i] = rec.ID
	}
	entries, err := src.LogEntries(ctx, ids)
	if err != nil {
		return out, err
	}

	policy, err := credit.ParsePolicy(j.report.Credit.Policy)
	if err != nil {
		return out, err
	}
	resolver := credit.Resolver{
		Policy: policy,
		Hours:  credit.Hours{StartOfDay: j.report.Hours.StartOfDay, EndOfDay: j.report.Hours.EndOfDay},
		Zones:  credit.NewRoster(src),
	}

	var errs []error
	for _, rec := range res.Kept {
		c, err := resolver.Resolve(ctx, entries[rec.ID], rec.CreatedAt)
		if err != nil {
			err = fmt.Errorf("incident %s: %w", rec.ID, err)
			if fatal(err) {
				return out, err
			}
			errs = append(errs, err)
			continue
		}
		out.rows = append(out.rows, datedRow{day: rec.CreatedAt, row: j.builder.IncidentSummary(rec, c)})
	}
	return out, errors.Join(errs...)
}

// statusCatalog fetches a page's components and incidents and classifies the
// incidents for per-component reporting.
func statusCatalog(ctx context.Context, src StatusSource, j job) (*compute.Catalog, classify.Result, int, error) {
	comps, err := src.Components(ctx)
	if err != nil {
		return nil, classify.Result{}, 0, err
	}
	cat, err := compute.NewCatalog(comps)
	if err != nil {
		return nil, classify.Result{}, 0, err
	}
	recs, err := src.Incidents(ctx, j.window.Start)
	if err != nil {
		return nil, classify.Result{}, 0, err
	}
	return cat, classify.Filter(recs, j.window, classify.ComponentRules()), len(recs), nil
}

func statuspageSLO(ctx context.Context, src StatusSource, j job) (output, error) {
	cat, res, fetched, err := statusCatalog(ctx, src, j)
	if err != nil {
		return output{}, err
	}
	out := output{fetched: fetched, skipped: res.Skipped}
	days, err := compute.NewEngine(j.log).Report(j.window, res.Kept, cat)
	if err != nil {
		return out, err
	}
	for _, r := range j.builder.SLO(days) {
		out.rows = append(out.rows, datedRow{day: r.Date.Time, row: r})
	}
	return out, nil
}

func statuspageIncidents(ctx context.Context, src StatusSource, j job) (output, error) {
	cat, res, fetched, err := statusCatalog(ctx, src, j)
	if err != nil {
		return output{}, err
	}
	out := output{fetched: fetched, skipped: res.Skipped}

	var errs []error
	for _, rec := range res.Kept {
		rs, err := j.builder.StatuspageIncident(rec, cat)
		if err != nil {
			if fatal(err) {
				return out, err
			}
			errs = append(errs, err)
			continue
		}
		for _, r := range rs {
			out.rows = append(out.rows, datedRow{day: *rec.ResolvedAt, row: r})
		}
	}
	return out, errors.Join(errs...)
}

func pingdomOutages(ctx context.Context, src CheckSource, j job) (output, error) {
	checks, err := src.Checks(ctx)
	if err != nil {
		return output{}, err
	}
	recs, err := src.Outages(ctx, checks, j.window)
	if err != nil {
		return output{}, err
	}
	// Every state interval is reported, up or down.
	res := classify.Filter(recs, j.window, classify.Rules{Ongoing: true, NoComponents: true})
	out := output{fetched: len(recs), skipped: res.Skipped}

	var errs []error
	for _, rec := range res.Kept {
		r, err := j.builder.OutageDetail(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.rows = append(out.rows, datedRow{day: rec.CreatedAt, row: r})
	}
	return out, errors.Join(errs...)
}

func pingdomSLO(ctx context.Context, src CheckSource, j job) (output, error) {
	checks, err := src.Checks(ctx)
	if err != nil {
		return output{}, err
	}
	refs := make([]types.ComponentRef, len(checks))
	for i, c := range checks {
		refs[i] = c.Ref()
	}
	cat, err := compute.NewCatalog(refs)
	if err != nil {
		return output{}, err
	}
	recs, err := src.Outages(ctx, checks, j.window)
	if err != nil {
		return output{}, err
	}
	res := classify.Filter(recs, j.window, classify.OutageRules(j.report.Rules.DowntimeStatuses))
	out := output{fetched: len(recs), skipped: res.Skipped}

	days, err := compute.NewEngine(j.log).Report(j.window, res.Kept, cat)
	if err != nil {
		return out, err
	}
	for _, r := range j.builder.SLO(days) {
		out.rows = append(out.rows, datedRow{day: r.Date.Time, row: r})
	}
	return out, nil
}
