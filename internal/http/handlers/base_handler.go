// README: Base handler utilities (JSON helpers, error mapping, channel scoping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillments/internal/modules/channel"
	"fulfillments/internal/modules/order"
	"fulfillments/internal/modules/routing"
	"fulfillments/internal/types"
)

const headerChannelID = "X-Channel-ID"

type errorResponse struct {
	Error string `json:"error"`
}

type transitionErrorResponse struct {
	Error string      `json:"error"`
	From  order.State `json:"from"`
	To    order.State `json:"to"`
}

// isValidID accepts the host platform's ids: short, alphanumeric plus - and _.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// channelID reads the caller's channel from the X-Channel-ID header, falling
// back to the channel_id query parameter.
func channelID(c *gin.Context) (types.ID, bool) {
	v := c.GetHeader(headerChannelID)
	if v == "" {
		v = c.Query("channel_id")
	}
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "missing or invalid channel id")
		return "", false
	}
	return types.ID(v), true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	if ite, ok := order.AsInvalidTransition(err); ok {
		writeJSON(c, http.StatusConflict, transitionErrorResponse{Error: ite.Error(), From: ite.From, To: ite.To})
		return
	}
	switch {
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, channel.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, routing.ErrMissingLocationData), errors.Is(err, routing.ErrGeocodingFailure):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrStoreUnavailable):
		writeError(c, http.StatusServiceUnavailable, "order store unavailable")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
