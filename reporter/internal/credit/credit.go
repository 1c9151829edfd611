package credit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/obsidianstack/slareport/pkg/types"
	"github.com/obsidianstack/slareport/reporter/internal/apperr"
)

// Policy selects which responder an incident is credited to.
type Policy int

const (
	// PolicyFirstResponder credits the earliest acknowledger, or when nobody
	// acknowledged, the earliest notified user.
	PolicyFirstResponder Policy = iota
	// PolicyLastResponder credits the most recent acknowledger, or the most
	// recently notified user.
	PolicyLastResponder
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "first_responder", "":
		return PolicyFirstResponder, nil
	case "last_responder":
		return PolicyLastResponder, nil
	default:
		return 0, fmt.Errorf("unknown credit policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyLastResponder {
		return "last_responder"
	}
	return "first_responder"
}

// Credit is the responder attribution and response timings of one incident.
type Credit struct {
	User       string
	OutOfHours bool

	// Seconds from creation to the earliest acknowledge / resolve entry;
	// nil when there is none.
	TimeToAcknowledge *int64
	TimeToResolve     *int64

	NumAcknowledgments int
	NumUsersNotified   int
}

// Resolver credits incidents to responders.
type Resolver struct {
	Policy Policy
	Hours  Hours
	Zones  Zones
}

// Resolve credits the incident created at createdAt with timeline entries
// delivered newest first. An incident nobody acknowledged or was notified of
// is a schema error.
func (r Resolver) Resolve(ctx context.Context, entries []types.LogEntry, createdAt time.Time) (Credit, error) {
	timeline := Chronological(entries)

	var acks, notified []types.LogEntry
	var firstAck, firstResolve *time.Time
	users := make(map[string]struct{})
	for i := range timeline {
		e := timeline[i]
		switch e.Type {
		case types.LogAcknowledge:
			acks = append(acks, e)
			if firstAck == nil {
				firstAck = &timeline[i].CreatedAt
			}
		case types.LogNotify:
			notified = append(notified, e)
			users[e.Actor] = struct{}{}
		case types.LogResolve:
			if firstResolve == nil {
				firstResolve = &timeline[i].CreatedAt
			}
		}
	}

	c := Credit{
		TimeToAcknowledge:  secondsSince(createdAt, firstAck),
		TimeToResolve:      secondsSince(createdAt, firstResolve),
		NumAcknowledgments: len(acks),
		NumUsersNotified:   len(users),
	}

	switch {
	case len(acks) > 0:
		c.User = r.pick(acks).Actor
	case len(notified) > 0:
		c.User = r.pick(notified).Actor
	default:
		return Credit{}, apperr.Schema("credit", "incident has no acknowledge or notify entries", nil)
	}

	loc, err := r.Zones.Location(ctx, c.User)
	if err != nil {
		return Credit{}, fmt.Errorf("credit %s: %w", c.User, err)
	}
	c.OutOfHours = r.Hours.OutOfHours(createdAt, loc)
	return c, nil
}

// pick selects from a non-empty chronological slice.
func (r Resolver) pick(entries []types.LogEntry) types.LogEntry {
	if r.Policy == PolicyLastResponder {
		return entries[len(entries)-1]
	}
	return entries[0]
}

// Chronological returns entries oldest first. Entries are delivered newest
// first, so the slice is reversed before a stable sort on CreatedAt; entries
// sharing a timestamp keep the reversed delivery order.
func Chronological(entries []types.LogEntry) []types.LogEntry {
	out := make([]types.LogEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func secondsSince(from time.Time, to *time.Time) *int64 {
	if to == nil {
		return nil
	}
	s := int64(math.RoundToEven(to.Sub(from).Seconds()))
	return &s
}
