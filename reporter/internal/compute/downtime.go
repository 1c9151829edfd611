package compute

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
)

// SecondsPerDay is the denominator of the uptime formula.
const SecondsPerDay = 24 * 60 * 60

// DayBuckets groups records by the UTC date they were resolved.
type DayBuckets map[time.Time][]types.Record

// Dates returns the bucket keys in ascending order.
func (b DayBuckets) Dates() []time.Time {
	out := make([]time.Time, 0, len(b))
	for d := range b {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// BucketByDay keys records by resolution date. Ongoing records have no
// resolution date and are left out.
func BucketByDay(recs []types.Record) DayBuckets {
	b := make(DayBuckets)
	for _, rec := range recs {
		if rec.ResolvedAt == nil {
			continue
		}
		d := types.Date(*rec.ResolvedAt)
		b[d] = append(b[d], rec)
	}
	return b
}

// DurationSeconds returns the record's duration in whole seconds, rounding
// half to even.
func DurationSeconds(rec types.Record) int64 {
	return int64(math.RoundToEven(rec.Duration().Seconds()))
}

// ComponentDowntime holds the outage durations of each component, keyed by
// name in catalog order.
type ComponentDowntime struct {
	order   []string
	seconds map[string][]int64
}

func newComponentDowntime(cat *Catalog) *ComponentDowntime {
	d := &ComponentDowntime{seconds: make(map[string][]int64, cat.Len())}
	for _, ref := range cat.Components() {
		if _, dup := d.seconds[ref.Name]; dup {
			continue
		}
		d.order = append(d.order, ref.Name)
		d.seconds[ref.Name] = []int64{}
	}
	return d
}

// Components returns component names in catalog order.
func (d *ComponentDowntime) Components() []string { return d.order }

// Durations returns the outage durations recorded against name.
func (d *ComponentDowntime) Durations(name string) []int64 { return d.seconds[name] }

// Uptime returns the uptime percentage of name.
func (d *ComponentDowntime) Uptime(name string) float64 { return Uptime(d.seconds[name]) }

// Downtime starts every catalogued component with an empty sequence and then
// appends each record's duration to every component it lists. A record
// component missing from the catalog is a lookup error.
func Downtime(recs []types.Record, cat *Catalog) (*ComponentDowntime, error) {
	d := newComponentDowntime(cat)
	for _, rec := range recs {
		secs := DurationSeconds(rec)
		for _, c := range rec.Components {
			ref, err := cat.Lookup(c.ID)
			if err != nil {
				return nil, fmt.Errorf("downtime for %s: %w", rec.ID, err)
			}
			d.seconds[ref.Name] = append(d.seconds[ref.Name], secs)
		}
	}
	return d, nil
}

// Uptime returns 100 - sum(durations)/86400*100. The result is not clamped.
func Uptime(durations []int64) float64 {
	var total int64
	for _, s := range durations {
		total += s
	}
	return 100 - float64(total)/SecondsPerDay*100
}
