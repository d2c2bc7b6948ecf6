// README: Sales channel (store) location and contact details.
package channel

import (
	"errors"

	"fulfillments/internal/types"
)

var ErrNotFound = errors.New("channel not found")

type Channel struct {
	ID            types.ID
	Code          string
	GooglePlaceID string
	Address       string
	Phone         string
	Hours         string
	Latitude      string
	Longitude     string
}
