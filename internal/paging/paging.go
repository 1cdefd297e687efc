// Package paging drives page-numbered and cursor-paginated listings.
package paging

import "context"

// State is the state of a page walk.
type State int

const (
	Fetching State = iota
	HasMore
	Exhausted
	EarlyStop
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case HasMore:
		return "has_more"
	case Exhausted:
		return "exhausted"
	case EarlyStop:
		return "early_stop"
	}
	return "unknown"
}

// Cursor locates the page to fetch. Page starts at 1; URL is set when the
// previous page handed out a next link.
type Cursor struct {
	Page int
	URL  string
}

// Page is one page of results. Next is the provider's next link, if any.
type Page[T any] struct {
	Items []T
	Next  string
}

// Walker fetches consecutive pages until the listing is exhausted or the
// visitor asks to stop.
type Walker[T any] struct {
	// PageSize is the requested page size. A page of exactly PageSize
	// items means another page may follow. Zero disables the check, so
	// only Next links continue the walk.
	PageSize int
	Fetch    func(ctx context.Context, cur Cursor) (Page[T], error)
}

// Next decides the state after a page was fetched.
func (w Walker[T]) Next(page Page[T], err error, stop bool) State {
	switch {
	case err != nil || len(page.Items) == 0:
		return Exhausted
	case stop:
		return EarlyStop
	case page.Next != "":
		return HasMore
	case w.PageSize > 0 && len(page.Items) == w.PageSize:
		return HasMore
	}
	return Exhausted
}

// Walk fetches pages one at a time and hands each non-empty page to
// visit. visit returns true to stop early. Failures end the walk
// silently; the pages already visited stand.
func (w Walker[T]) Walk(ctx context.Context, visit func(items []T) bool) State {
	cur := Cursor{Page: 1}
	for {
		if ctx.Err() != nil {
			return Exhausted
		}

		page, err := w.Fetch(ctx, cur)
		stop := false
		if err == nil && len(page.Items) > 0 {
			stop = visit(page.Items)
		}

		state := w.Next(page, err, stop)
		if state != HasMore {
			return state
		}
		cur = Cursor{Page: cur.Page + 1, URL: page.Next}
	}
}

// Collect walks every page and returns all items in order.
func (w Walker[T]) Collect(ctx context.Context) []T {
	var all []T
	w.Walk(ctx, func(items []T) bool {
		all = append(all, items...)
		return false
	})
	return all
}
