package compute

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
)

// DaySummary is the downtime picture of one report day.
type DaySummary struct {
	Date     time.Time
	Downtime *ComponentDowntime
}

// Engine aggregates classified records over a reporting window.
//
// Engine keeps no state between calls; Report may be called any number of
// times on the same input with identical results.
type Engine struct {
	log *slog.Logger
}

// NewEngine returns an Engine logging through log, or slog.Default when nil.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// Report returns one summary per day of w, in date order. Records must
// already be classified; those resolved outside w's days are ignored.
func (e *Engine) Report(w types.TimeWindow, recs []types.Record, cat *Catalog) ([]DaySummary, error) {
	buckets := BucketByDay(recs)
	days := w.Days()

	out := make([]DaySummary, 0, len(days))
	used := 0
	for _, day := range days {
		dayRecs := buckets[day]
		used += len(dayRecs)
		dt, err := Downtime(dayRecs, cat)
		if err != nil {
			return nil, fmt.Errorf("compute: %s: %w", day.Format(types.DateLayout), err)
		}
		out = append(out, DaySummary{Date: day, Downtime: dt})
	}

	if ignored := len(recs) - used; ignored > 0 {
		e.log.Debug("compute: records resolved outside report days",
			"window", w.String(), "ignored", ignored)
	}
	return out, nil
}
