package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const namespace = "slareport"

// Recorder holds the reporter's collectors.
type Recorder struct {
	reg *prometheus.Registry

	recordsFetched *prometheus.CounterVec
	recordsSkipped *prometheus.CounterVec
	rowsShipped    *prometheus.CounterVec
	objectsShipped *prometheus.CounterVec
	runFailures    *prometheus.CounterVec
	runDuration    *prometheus.GaugeVec
	lastSuccess    *prometheus.GaugeVec
}

// New returns a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		recordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw upstream records fetched, by report.",
		}, []string{"report"}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records excluded by classification, by report and reason.",
		}, []string{"report", "reason"}),
		rowsShipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_shipped_total",
			Help:      "Output rows delivered, by report.",
		}, []string{"report"}),
		objectsShipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_shipped_total",
			Help:      "Output files delivered, by report.",
		}, []string{"report"}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Report runs that failed, by report and error kind.",
		}, []string{"report", "kind"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run, by report.",
		}, []string{"report"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the most recent successful run, by report.",
		}, []string{"report"}),
	}
	r.reg.MustRegister(r.recordsFetched, r.recordsSkipped, r.rowsShipped, r.objectsShipped,
		r.runFailures, r.runDuration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Fetched adds n fetched records to report.
func (r *Recorder) Fetched(report string, n int) {
	r.recordsFetched.WithLabelValues(report).Add(float64(n))
}

// Skipped adds n records skipped for reason.
func (r *Recorder) Skipped(report, reason string, n int) {
	r.recordsSkipped.WithLabelValues(report, reason).Add(float64(n))
}

// Shipped adds delivered rows and objects.
func (r *Recorder) Shipped(report string, rows, objects int) {
	r.rowsShipped.WithLabelValues(report).Add(float64(rows))
	r.objectsShipped.WithLabelValues(report).Add(float64(objects))
}

// RunDone records the outcome of one report run. kind labels failures and
// is ignored on success.
func (r *Recorder) RunDone(report string, took time.Duration, kind string, err error, now time.Time) {
	r.runDuration.WithLabelValues(report).Set(took.Seconds())
	if err != nil {
		r.runFailures.WithLabelValues(report, kind).Inc()
		return
	}
	r.lastSuccess.WithLabelValues(report).Set(float64(now.Unix()))
}

// WriteTextfile writes the registry in the text exposition format to path,
// replacing it atomically so the node exporter never reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	mfs, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".slareport-*.prom")
	if err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encodeText(tmp, mfs); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: textfile: %w", err)
	}
	return nil
}

func encodeText(w io.Writer, mfs []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Push sends the registry to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}

// Export writes the textfile and pushes, whichever are configured. Both are
// attempted; their errors are joined.
func (r *Recorder) Export(ctx context.Context, textfile, pushURL, job string) error {
	var errs []error
	if textfile != "" {
		errs = append(errs, r.WriteTextfile(textfile))
	}
	if pushURL != "" {
		errs = append(errs, r.Push(ctx, pushURL, job))
	}
	return errors.Join(errs...)
}
