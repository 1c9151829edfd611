package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/credit"
	"github.com/obsidianstack/slareport/reporter/internal/shipper"
	"github.com/obsidianstack/slareport/reporter/internal/source"
)

// IncidentSource is the PagerDuty side of the incident summary report.
type IncidentSource interface {
	credit.UserLister
	Incidents(ctx context.Context, w types.TimeWindow) ([]types.Record, error)
	LogEntries(ctx context.Context, ids []string) (map[string][]types.LogEntry, error)
}

// StatusSource lists a status page's components and incidents.
type StatusSource interface {
	Components(ctx context.Context) ([]types.ComponentRef, error)
	Incidents(ctx context.Context, since time.Time) ([]types.Record, error)
}

// CheckSource lists uptime checks and their state intervals.
type CheckSource interface {
	Checks(ctx context.Context) ([]source.Check, error)
	Outages(ctx context.Context, checks []source.Check, w types.TimeWindow) ([]types.Record, error)
}

// Sources builds a fresh upstream client per report run.
type Sources struct {
	PagerDuty  func(config.Report) (IncidentSource, error)
	Statuspage func(config.Report) (StatusSource, error)
	Pingdom    func(config.Report) (CheckSource, error)
}

// HTTPSources returns Sources talking to the real APIs with fc's limits.
func HTTPSources(fc config.FetchConfig) Sources {
	return Sources{
		PagerDuty: func(r config.Report) (IncidentSource, error) {
			return source.NewPagerDuty(r.Source, fc)
		},
		Statuspage: func(r config.Report) (StatusSource, error) {
			return source.NewStatuspage(r.Source, fc)
		},
		Pingdom: func(r config.Report) (CheckSource, error) {
			return source.NewPingdom(r.Source, fc)
		},
	}
}

// NewUploader returns the uploader for the configured sink.
func NewUploader(out config.OutputConfig) (shipper.Uploader, error) {
	switch out.Sink {
	case "s3":
		return shipper.NewS3Uploader(out.S3), nil
	case "dir":
		return shipper.DirUploader{Dir: out.Dir}, nil
	default:
		return nil, fmt.Errorf("pipeline: unknown sink %q", out.Sink)
	}
}
