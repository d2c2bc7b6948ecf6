// README: The task rule table. Order here is priority order in the output.
package tasks

import (
	"slices"
	"time"

	"fulfillments/internal/modules/order"
)

const day = 24 * time.Hour

// Rule selects orders by state, date window and delivery type and turns each
// match into one task.
type Rule struct {
	Name       string
	States     []order.State
	Window     func(Clock) order.Window
	IsDelivery *bool
	// LineFilter, when set, keeps only orders with at least one matching line.
	LineFilter func(order.Line) bool
	Tag        Tag
	Template   func(f Formatter, o order.Order) string
}

func (r Rule) filter(c Clock) order.Filter {
	return order.Filter{
		States:     r.States,
		Window:     r.Window(c),
		IsDelivery: r.IsDelivery,
		Excluded:   order.ExcludedStates,
		WithLines:  r.LineFilter != nil,
	}
}

func (r Rule) keep(o order.Order) bool {
	if r.LineFilter == nil {
		return true
	}
	return slices.ContainsFunc(o.Lines, r.LineFilter)
}

func (r Rule) task(f Formatter, o order.Order) Task {
	return Task{
		TaskName:  r.Template(f, o),
		Tag:       r.Tag,
		OrderID:   o.ID,
		State:     o.State,
		Code:      o.Code,
		ColorType: r.Tag.Color(),
	}
}

var (
	preparation = []order.State{order.StateAwaitingPrep, order.StatePreparing}
	delivery    = order.Bool(true)
)

func untilNow(c Clock) order.Window { return order.Until(c.Now) }
func today(c Clock) order.Window    { return c.Today() }

// DefaultRules is the production rule table.
var DefaultRules = []Rule{
	{
		Name:       "could-not-deliver",
		States:     []order.State{order.StateCouldNotDeliver},
		Window:     untilNow,
		IsDelivery: delivery,
		Tag:        TagHigh,
		Template: func(f Formatter, o order.Order) string {
			return f.Link(o) + " could not be delivered, Reschedule Order"
		},
	},
	{
		Name:       "passed-delivery-date",
		States:     []order.State{order.StateReadyForDelivery},
		Window:     func(c Clock) order.Window { return order.Until(c.Ago(day)) },
		IsDelivery: delivery,
		Tag:        TagHigh,
		Template: func(f Formatter, o order.Order) string {
			return f.Link(o) + " passed delivery date, Reschedule Order"
		},
	},
	{
		Name:   "prepare-today",
		States: preparation,
		Window: today,
		Tag:    TagHigh,
		Template: func(f Formatter, o order.Order) string {
			return "Prepare " + f.Link(o) + " for today"
		},
	},
	{
		Name:   "no-collection",
		States: []order.State{order.StateNoCollection},
		Window: untilNow,
		Tag:    TagHigh,
		Template: func(f Formatter, o order.Order) string {
			return "Refund Order " + f.Link(o) + ` with code "no collection" and place items back on shelf`
		},
	},
	{
		Name:   "collection-overdue-24h",
		States: []order.State{order.StateReadyForCollection},
		Window: func(c Clock) order.Window {
			return order.Window{Start: c.Ago(2 * day), End: c.Ago(day), OpenStart: true}
		},
		Tag: TagMedium,
		Template: func(f Formatter, o order.Order) string {
			return f.Link(o) + " was not collected, Contact Customer"
		},
	},
	{
		Name:       "dispatch-today",
		States:     []order.State{order.StateReadyForDelivery},
		Window:     today,
		IsDelivery: delivery,
		Tag:        TagMedium,
		Template: func(f Formatter, o order.Order) string {
			return "Send " + f.Link(o) + " out for delivery"
		},
	},
	{
		Name:   "collection-overdue-48h",
		States: []order.State{order.StateReadyForCollection},
		Window: func(c Clock) order.Window { return order.Until(c.Ago(2 * day)) },
		Tag:    TagMedium,
		Template: func(f Formatter, o order.Order) string {
			return f.Link(o) + " still not collected, Mark as No Collection"
		},
	},
	{
		Name:   "prepare-tomorrow",
		States: preparation,
		Window: func(c Clock) order.Window { return c.Tomorrow() },
		Tag:    TagLow,
		Template: func(f Formatter, o order.Order) string {
			return "Prepare " + f.Link(o) + " for tomorrow"
		},
	},
	{
		Name:   "collection-today",
		States: []order.State{order.StateReadyForCollection},
		Window: today,
		Tag:    TagLow,
		Template: func(f Formatter, o order.Order) string {
			return f.Link(o) + " is ready for collection today"
		},
	},
	{
		Name:       "substitution-refund",
		States:     []order.State{order.StateDelivered, order.StateCollected},
		Window:     func(c Clock) order.Window { return order.Until(c.EndOfDay(0)) },
		LineFilter: order.Line.NeedsRefund,
		Tag:        TagLow,
		Template: func(f Formatter, o order.Order) string {
			return "Refund Order " + f.Link(o) + " for rejected substitutions"
		},
	},
	{
		Name:       "out-for-delivery",
		States:     []order.State{order.StateOutForDelivery},
		Window:     today,
		IsDelivery: delivery,
		Tag:        TagInProgress,
		Template: func(Formatter, order.Order) string {
			return "Finish Daily Deliveries"
		},
	},
}
