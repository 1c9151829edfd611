package pipeline

import (
	"sort"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/shipper"
)

// batches groups rows into output files. Without partitioning the window
// yields a single file named after its start date. With partitioning every
// report day gets a file, empty or not, plus one per extra day a row falls on.
func batches(w types.TimeWindow, rows []datedRow, byDay bool) []shipper.Batch {
	if !byDay {
		b := shipper.Batch{Name: w.Start.Format(types.DateLayout), Rows: make([]types.Row, 0, len(rows))}
		for _, r := range rows {
			b.Rows = append(b.Rows, r.row)
		}
		return []shipper.Batch{b}
	}

	perDay := make(map[time.Time][]types.Row)
	for _, d := range w.Days() {
		perDay[d] = []types.Row{}
	}
	for _, r := range rows {
		d := types.Date(r.day)
		perDay[d] = append(perDay[d], r.row)
	}

	days := make([]time.Time, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]shipper.Batch, len(days))
	for i, d := range days {
		out[i] = shipper.Batch{Name: d.Format(types.DateLayout), Rows: perDay[d]}
	}
	return out
}
