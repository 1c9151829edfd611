package credit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without a zoneinfo database

	"github.com/obsidianstack/slareport/reporter/internal/apperr"
)

// User is an on-call user and the IANA zone name they work in.
type User struct {
	Name     string
	TimeZone string
}

// UserLister fetches the full user list from the upstream.
type UserLister interface {
	Users(ctx context.Context) ([]User, error)
}

// Zones resolves a user name to a location.
type Zones interface {
	Location(ctx context.Context, user string) (*time.Location, error)
}

// Roster maps user names to time zones. The user list is fetched on the
// first Location call and reused for the lifetime of the Roster, which is
// one run.
type Roster struct {
	src UserLister

	once  sync.Once
	zones map[string]zone
	err   error
}

type zone struct {
	loc *time.Location
	err error
}

// NewRoster returns a Roster backed by src.
func NewRoster(src UserLister) *Roster {
	return &Roster{src: src}
}

// Location returns the time zone of user. An unknown user is a lookup error;
// a user whose zone name does not load is a schema error.
func (r *Roster) Location(ctx context.Context, user string) (*time.Location, error) {
	r.once.Do(func() { r.load(ctx) })
	if r.err != nil {
		return nil, r.err
	}
	z, ok := r.zones[user]
	if !ok {
		return nil, apperr.Lookup("roster", fmt.Sprintf("no time zone for user %q", user))
	}
	return z.loc, z.err
}

func (r *Roster) load(ctx context.Context) {
	users, err := r.src.Users(ctx)
	if err != nil {
		r.err = fmt.Errorf("roster: list users: %w", err)
		return
	}
	r.zones = make(map[string]zone, len(users))
	for _, u := range users {
		loc, err := time.LoadLocation(u.TimeZone)
		if err != nil {
			r.zones[u.Name] = zone{err: apperr.Schema("roster",
				fmt.Sprintf("user %q has unknown time zone %q", u.Name, u.TimeZone), err)}
			continue
		}
		r.zones[u.Name] = zone{loc: loc}
	}
	slog.Debug("credit: roster loaded", "users", len(users))
}
