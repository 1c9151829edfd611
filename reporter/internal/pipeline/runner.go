package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
	"github.com/obsidianstack/slareport/reporter/internal/config"
	"github.com/obsidianstack/slareport/reporter/internal/metrics"
	"github.com/obsidianstack/slareport/reporter/internal/rows"
	"github.com/obsidianstack/slareport/reporter/internal/shipper"
)

// Runner executes the configured reports. A Runner holds no state between
// runs beyond its metrics.
type Runner struct {
	cfg     *config.Config
	sources Sources
	up      shipper.Uploader
	rec     *metrics.Recorder
	log     *slog.Logger

	now func() time.Time // injectable for tests
}

// NewRunner returns a Runner for cfg. A nil log uses slog.Default.
func NewRunner(cfg *config.Config, sources Sources, up shipper.Uploader, rec *metrics.Recorder, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, sources: sources, up: up, rec: rec, log: log, now: time.Now}
}

// EndDate returns the exclusive window end for a run: override when set,
// then window.end_date, then today in UTC.
func EndDate(cfg *config.Config, override string, now time.Time) (time.Time, error) {
	s := override
	if s == "" {
		s = cfg.Window.EndDate
	}
	if s == "" {
		return types.Date(now), nil
	}
	return types.ParseDate(s)
}

// Run executes every report, or only the one named only, for the window
// ending at end. Reports run one after another; a failed report does not
// stop the rest. Metrics are exported once all reports have finished.
func (r *Runner) Run(ctx context.Context, end time.Time, only string) error {
	log := r.log.With("run_id", uuid.NewString())
	log.Info("pipeline: run starting", "end_date", end.Format(types.DateLayout), "reports", len(r.cfg.Reports))

	var errs []error
	matched := 0
	for _, rep := range r.cfg.Reports {
		if only != "" && rep.Name != only {
			continue
		}
		matched++

		start := r.now()
		err := r.runReport(ctx, log.With("report", rep.Name, "kind", rep.Kind), rep, end)
		r.rec.RunDone(rep.Name, r.now().Sub(start), failureKind(err), err, r.now())
		if err != nil {
			log.Error("pipeline: report failed", "report", rep.Name, "err", err)
			errs = append(errs, fmt.Errorf("report %s: %w", rep.Name, err))
		}
	}
	if only != "" && matched == 0 {
		errs = append(errs, fmt.Errorf("pipeline: no report named %q", only))
	}

	m := r.cfg.Metrics
	if err := r.rec.Export(ctx, m.Textfile, m.PushgatewayURL, m.Job); err != nil {
		log.Warn("pipeline: metrics export failed", "err", err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info("pipeline: run complete", "reports", matched)
	return nil
}

func (r *Runner) runReport(ctx context.Context, log *slog.Logger, rep config.Report, end time.Time) error {
	w, err := types.WindowEndingAt(end, rep.DaysBack)
	if err != nil {
		return err
	}
	format, err := types.ParseTimeFormat(rep.TimeFormat)
	if err != nil {
		return err
	}
	enc, err := shipper.ParseEncoding(rep.Encoding)
	if err != nil {
		return err
	}

	j := job{report: rep, window: w, builder: rows.Builder{Format: format}, log: log}
	out, err := r.produce(ctx, j)
	r.rec.Fetched(rep.Name, out.fetched)
	for reason, n := range out.skipped {
		r.rec.Skipped(rep.Name, string(reason), n)
	}
	if err != nil {
		return err
	}
	log.Debug("pipeline: records classified", "window", w.String(),
		"fetched", out.fetched, "rows", len(out.rows))

	s := shipper.New(r.up, shipper.Options{
		Encoding: enc,
		Header:   rep.WriteHeader(),
		Prefix:   rep.Prefix,
		Attempts: r.cfg.Output.UploadAttempts,
	})
	st, err := s.Ship(ctx, batches(w, out.rows, rep.PartitionByDay))
	r.rec.Shipped(rep.Name, st.Rows, st.Objects)
	if err != nil {
		return err
	}
	log.Info("pipeline: report shipped", "window", w.String(),
		"objects", st.Objects, "rows", st.Rows, "bytes", st.Bytes)
	return nil
}

// produce dispatches on the report kind.
func (r *Runner) produce(ctx context.Context, j job) (output, error) {
	switch j.report.Kind {
	case config.KindPagerDutyIncidents:
		src, err := r.sources.PagerDuty(j.report)
		if err != nil {
			return output{}, err
		}
		return pagerDutyIncidents(ctx, src, j)
	case config.KindStatuspageSLO, config.KindStatuspageIncidents:
		src, err := r.sources.Statuspage(j.report)
		if err != nil {
			return output{}, err
		}
		if j.report.Kind == config.KindStatuspageSLO {
			return statuspageSLO(ctx, src, j)
		}
		return statuspageIncidents(ctx, src, j)
	case config.KindPingdomOutages, config.KindPingdomSLO:
		src, err := r.sources.Pingdom(j.report)
		if err != nil {
			return output{}, err
		}
		if j.report.Kind == config.KindPingdomSLO {
			return pingdomSLO(ctx, src, j)
		}
		return pingdomOutages(ctx, src, j)
	default:
		return output{}, fmt.Errorf("pipeline: unknown report kind %q", j.report.Kind)
	}
}

// failureKind labels a failed run for metrics.
func failureKind(err error) string {
	if err == nil {
		return ""
	}
	if k := apperr.KindOf(err); k != 0 {
		return k.String()
	}
	return "other"
}
