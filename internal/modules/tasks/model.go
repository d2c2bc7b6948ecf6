// README: Task values surfaced to fulfillment staff and their priority tags.
package tasks

import (
	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

type Tag string

const (
	TagHigh       Tag = "High Priority"
	TagMedium     Tag = "Medium Priority"
	TagLow        Tag = "Low Priority"
	TagInProgress Tag = "In Progress"
)

type ColorType string

const (
	ColorError   ColorType = "error"
	ColorSuccess ColorType = "success"
	ColorWarning ColorType = "warning"
)

// Color is the badge colour the dashboard renders for the tag.
func (t Tag) Color() ColorType {
	switch t {
	case TagHigh:
		return ColorError
	case TagInProgress:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

type Task struct {
	TaskName  string      `json:"taskName"`
	Tag       Tag         `json:"tag"`
	OrderID   types.ID    `json:"orderId"`
	State     order.State `json:"state"`
	Code      string      `json:"code"`
	ColorType ColorType   `json:"colorType"`
}
