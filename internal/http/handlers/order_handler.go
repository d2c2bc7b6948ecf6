// README: Order handlers: read an order, query the state graph, apply transitions.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fulfillments/internal/http/middleware"
	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

type OrderService interface {
	Graph() *order.Graph
	Get(ctx context.Context, channelID, id types.ID) (*order.Order, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) (*order.Event, error)
}

type OrderHandler struct {
	order OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{order: svc}
}

type orderResponse struct {
	ID                       types.ID      `json:"id"`
	Code                     string        `json:"code"`
	State                    order.State   `json:"state"`
	IsDelivery               bool          `json:"isDelivery"`
	DeliveryOrCollectionDate *time.Time    `json:"deliveryOrCollectionDate,omitempty"`
	TimeSlot                 string        `json:"timeSlot,omitempty"`
	OrderNote                string        `json:"orderNote,omitempty"`
	RescheduleReason         string        `json:"rescheduleReason,omitempty"`
	Review                   *int          `json:"review,omitempty"`
	GooglePlaceID            string        `json:"googlePlaceId,omitempty"`
	TotalWithTax             int64         `json:"totalWithTax"`
	CurrencyCode             string        `json:"currencyCode,omitempty"`
	NextStates               []order.State `json:"nextStates,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		Code:             o.Code,
		State:            o.State,
		IsDelivery:       o.IsDelivery,
		TimeSlot:         o.TimeSlot,
		OrderNote:        o.OrderNote,
		RescheduleReason: o.RescheduleReason,
		Review:           o.Review,
		GooglePlaceID:    o.GooglePlaceID,
		TotalWithTax:     o.TotalWithTax.Amount,
		CurrencyCode:     o.TotalWithTax.Currency,
	}
	if !o.DeliveryOrCollectionDate.IsZero() {
		d := o.DeliveryOrCollectionDate
		resp.DeliveryOrCollectionDate = &d
	}
	return resp
}

func (h *OrderHandler) Get(c *gin.Context) {
	ch, ok := channelID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), ch, types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := toOrderResponse(o)
	resp.NextStates = h.order.Graph().Successors(o.State)
	writeJSON(c, http.StatusOK, resp)
}

// Allowed answers GET /api/transitions/allowed?from=&to=.
func (h *OrderHandler) Allowed(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		writeError(c, http.StatusBadRequest, "from and to are required")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"allowed": h.order.Graph().IsTransitionAllowed(order.State(from), order.State(to)),
	})
}

// Successors answers GET /api/states/:state/next.
func (h *OrderHandler) Successors(c *gin.Context) {
	state := order.State(c.Param("state"))
	writeJSON(c, http.StatusOK, gin.H{"state": state, "next": h.order.Graph().Successors(state)})
}

type transitionReq struct {
	State  string `json:"state" binding:"required"`
	Reason string `json:"reason"`
}

func (h *OrderHandler) Transition(c *gin.Context) {
	ch, ok := channelID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid order id")
		return
	}
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	reason := req.Reason
	if uid := middleware.CallerUID(c); uid != "" && reason == "" {
		reason = "changed by " + uid
	}
	ev, err := h.order.Transition(c.Request.Context(), order.TransitionCommand{
		ChannelID: ch,
		OrderID:   types.ID(id),
		To:        order.State(req.State),
		ActorType: order.ActorAdmin,
		Reason:    reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"order_id": ev.OrderID,
		"from":     ev.FromState,
		"state":    ev.ToState,
		"event_id": ev.ID,
	})
}
