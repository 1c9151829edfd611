package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the number of concurrent upstream operations allowed when
// Fanout.Limit is unset.
const DefaultLimit = 10

// Fanout bounds a per-entity fetch.
type Fanout struct {
	// Limit caps the number of operations in flight.
	Limit int
	// Timeout, when positive, bounds each operation individually.
	Timeout time.Duration
}

// Outcome is the result of one entity's operation.
type Outcome[T any] struct {
	Value T
	Err   error
}

// EntityError attributes a failure to the entity that produced it.
type EntityError[K comparable] struct {
	ID  K
	Err error
}

func (e *EntityError[K]) Error() string {
	return fmt.Sprintf("entity %v: %v", e.ID, e.Err)
}

func (e *EntityError[K]) Unwrap() error { return e.Err }

// Results maps entity ids to outcomes and remembers input order.
type Results[K comparable, T any] struct {
	order []K
	byID  map[K]Outcome[T]
}

// Get returns the outcome for id.
func (r *Results[K, T]) Get(id K) (Outcome[T], bool) {
	o, ok := r.byID[id]
	return o, ok
}

// Len returns the number of distinct entities.
func (r *Results[K, T]) Len() int { return len(r.order) }

// IDs returns entity ids in input order, duplicates removed.
func (r *Results[K, T]) IDs() []K {
	return append([]K(nil), r.order...)
}

// Err joins every entity failure in input order, or returns nil.
func (r *Results[K, T]) Err() error {
	var errs []error
	for _, id := range r.order {
		if o := r.byID[id]; o.Err != nil {
			errs = append(errs, &EntityError[K]{ID: id, Err: o.Err})
		}
	}
	return errors.Join(errs...)
}

// Values returns the successful values keyed by id.
func (r *Results[K, T]) Values() map[K]T {
	out := make(map[K]T, len(r.byID))
	for id, o := range r.byID {
		if o.Err == nil {
			out[id] = o.Value
		}
	}
	return out
}

// Run calls fn once per distinct id with at most f.Limit calls in flight and
// waits for all of them. Outcomes are keyed by id, so the result does not
// depend on completion order.
func Run[K comparable, T any](ctx context.Context, f Fanout, ids []K, fn func(context.Context, K) (T, error)) *Results[K, T] {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	seen := make(map[K]struct{}, len(ids))
	order := make([]K, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}

	outcomes := make([]Outcome[T], len(order))

	// A plain Group: one entity's error must not cancel the others.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range order {
		g.Go(func() error {
			opCtx, cancel := ctx, context.CancelFunc(func() {})
			if f.Timeout > 0 {
				opCtx, cancel = context.WithTimeout(ctx, f.Timeout)
			}
			defer cancel()

			v, err := fn(opCtx, id)
			outcomes[i] = Outcome[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[K]Outcome[T], len(order))
	for i, id := range order {
		byID[id] = outcomes[i]
	}
	return &Results[K, T]{order: order, byID: byID}
}
