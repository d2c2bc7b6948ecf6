// README: Query predicates understood by every order store.
package order

import (
	"slices"
	"time"
)

// Window bounds DeliveryOrCollectionDate. Zero Start or End means unbounded on
// that side. Both bounds are inclusive unless OpenStart is set, which makes the
// lower bound exclusive so adjacent escalation windows never overlap.
type Window struct {
	Start     time.Time
	End       time.Time
	OpenStart bool
}

// Until is every date up to and including end.
func Until(end time.Time) Window {
	return Window{End: end}
}

// Between is [start, end].
func Between(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() {
		if w.OpenStart && !t.After(w.Start) {
			return false
		}
		if !w.OpenStart && t.Before(w.Start) {
			return false
		}
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Filter is the predicate a store applies on the caller's behalf. Results must
// come back ordered by order id.
type Filter struct {
	States     []State
	Window     Window
	IsDelivery *bool
	Excluded   []State
	// WithLines asks the store to load order lines as well.
	WithLines bool
}

// Matches evaluates the filter against a single order in memory.
func (f Filter) Matches(o *Order) bool {
	if len(f.States) > 0 && !slices.Contains(f.States, o.State) {
		return false
	}
	if slices.Contains(f.Excluded, o.State) {
		return false
	}
	if f.IsDelivery != nil && o.IsDelivery != *f.IsDelivery {
		return false
	}
	// An order without a date only passes an unbounded window, as NULL would in SQL.
	if o.DeliveryOrCollectionDate.IsZero() {
		return f.Window.Start.IsZero() && f.Window.End.IsZero()
	}
	return f.Window.Contains(o.DeliveryOrCollectionDate)
}

// Bool is a convenience for building IsDelivery filters.
func Bool(v bool) *bool {
	return &v
}
