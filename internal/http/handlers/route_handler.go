// README: Deliverable-orders handler returning the day's route link.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fulfillments/internal/modules/order"
	"fulfillments/internal/modules/routing"
)

type RouteBuilder interface {
	BuildRoute(ctx context.Context, req routing.RouteRequest) (*routing.Route, error)
}

type RouteHandler struct {
	routes RouteBuilder
}

func NewRouteHandler(svc RouteBuilder) *RouteHandler {
	return &RouteHandler{routes: svc}
}

type routeResponse struct {
	Orders       []orderResponse `json:"orders"`
	URL          string          `json:"url"`
	DriveSeconds int64           `json:"driveSeconds,omitempty"`
}

// DeliverableOrders answers GET /api/deliverable-orders?lat=&lon=[&start=&end=&is_delivery=].
// start and end are RFC 3339 and must come together.
func (h *RouteHandler) DeliverableOrders(c *gin.Context) {
	ch, ok := channelID(c)
	if !ok {
		return
	}
	req := routing.RouteRequest{ChannelID: ch}

	if c.Query("lat") != "" || c.Query("lon") != "" {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			writeError(c, http.StatusBadRequest, "lat and lon must be numbers")
			return
		}
		req.Location = &routing.LatLon{Lat: lat, Lon: lon}
	}

	if start, end := c.Query("start"), c.Query("end"); start != "" || end != "" {
		s, errStart := time.Parse(time.RFC3339, start)
		e, errEnd := time.Parse(time.RFC3339, end)
		if errStart != nil || errEnd != nil || e.Before(s) {
			writeError(c, http.StatusBadRequest, "start and end must be an RFC 3339 range")
			return
		}
		req.Window = order.Between(s, e)
	}

	if v := c.Query("is_delivery"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "is_delivery must be a boolean")
			return
		}
		req.IsDelivery = order.Bool(b)
	}

	route, err := h.routes.BuildRoute(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := routeResponse{Orders: make([]orderResponse, len(route.Orders)), URL: route.URL, DriveSeconds: route.DriveSeconds}
	for i := range route.Orders {
		resp.Orders[i] = toOrderResponse(&route.Orders[i])
	}
	writeJSON(c, http.StatusOK, resp)
}
