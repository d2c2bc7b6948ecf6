// README: Business-day arithmetic anchored on one captured instant.
package tasks

import (
	"time"

	"fulfillments/internal/modules/order"
)

// Clock is "now" as seen by a single GetTasks call. Day boundaries are taken in
// the business time zone.
type Clock struct {
	Now time.Time
	loc *time.Location
}

func NewClock(now time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: now, loc: loc}
}

// Ago is now minus d.
func (c Clock) Ago(d time.Duration) time.Time {
	return c.Now.Add(-d)
}

// StartOfDay is local midnight of the day offset days from today.
func (c Clock) StartOfDay(offset int) time.Time {
	y, m, d := c.Now.In(c.loc).Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, c.loc)
}

// EndOfDay is the last representable instant (microsecond resolution) of the
// day offset days from today.
func (c Clock) EndOfDay(offset int) time.Time {
	return c.StartOfDay(offset + 1).Add(-time.Microsecond)
}

func (c Clock) Today() order.Window {
	return order.Between(c.StartOfDay(0), c.EndOfDay(0))
}

func (c Clock) Tomorrow() order.Window {
	return order.Between(c.StartOfDay(1), c.EndOfDay(1))
}
