// README: Renders the order reference embedded in task names.
package tasks

import (
	"fmt"
	"html"
	"strings"

	"fulfillments/internal/modules/order"
)

// Formatter renders the order reference inside a task name.
type Formatter interface {
	Link(o order.Order) string
}

// HTMLLinks renders an admin link to the order, the way the dashboard embeds it.
type HTMLLinks struct {
	Base string
}

func (h HTMLLinks) Link(o order.Order) string {
	base := strings.TrimRight(h.Base, "/")
	href := fmt.Sprintf("%s/orders/%s", base, o.ID)
	if o.State == order.StateDraft {
		href = fmt.Sprintf("%s/orders/draft/%s", base, o.ID)
	}
	return fmt.Sprintf(`<a class="button-ghost" href="%s"><span>%s</span></a>`,
		html.EscapeString(href), html.EscapeString(o.Code))
}

// PlainLinks renders just the order code, for terminals and logs.
type PlainLinks struct{}

func (PlainLinks) Link(o order.Order) string {
	return o.Code
}
