package fetch

import (
	"context"
	"fmt"
)

// Page is one page of a paginated collection. More carries the API's own
// continuation flag when it has one.
type Page[T any] struct {
	Number int
	Items  []T
	More   bool
}

// PageFunc requests the page with the given 1-based number.
type PageFunc[T any] func(ctx context.Context, number int) (Page[T], error)

// ContinueFunc decides, from the page just fetched, whether to request the next.
type ContinueFunc[T any] func(p Page[T]) bool

// Paged requests pages starting at 1 and appends their items until cont
// returns false or a page comes back empty. The first error aborts the walk
// and no partial result is returned.
func Paged[T any](ctx context.Context, fetch PageFunc[T], cont ContinueFunc[T]) ([]T, error) {
	var all []T
	for number := 1; ; number++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := fetch(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", number, err)
		}
		p.Number = number
		all = append(all, p.Items...)
		if len(p.Items) == 0 || !cont(p) {
			return all, nil
		}
	}
}

// FullPage continues while each page holds exactly size items.
func FullPage[T any](size int) ContinueFunc[T] {
	return func(p Page[T]) bool { return len(p.Items) == size }
}

// HasMore continues while the API reports more pages.
func HasMore[T any]() ContinueFunc[T] {
	return func(p Page[T]) bool { return p.More }
}
