// README: Route request/response values and the errors route building can fail with.
package routing

import (
	"errors"
	"fmt"

	"fulfillments/internal/modules/order"
	"fulfillments/internal/types"
)

var (
	ErrMissingLocationData = errors.New("missing location data")
	ErrGeocodingFailure    = errors.New("geocoding failure")
)

// MissingLocationError names the entity that has no place id.
type MissingLocationError struct {
	Entity string
}

func (e *MissingLocationError) Error() string {
	return fmt.Sprintf("%s has no google place id set", e.Entity)
}

func (e *MissingLocationError) Is(target error) bool {
	return target == ErrMissingLocationData
}

// GeocodingError reports a place lookup that produced nothing usable.
type GeocodingError struct {
	Context string
	Err     error
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("couldn't find location details for %s", e.Context)
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

func (e *GeocodingError) Is(target error) bool {
	return target == ErrGeocodingFailure
}

// RouteStates are the orders still waiting to be handed over. Finished
// (Delivered, Collected, PartialRefund) and failed (CouldNotDeliver,
// NoCollection) orders never become stops.
var RouteStates = []order.State{
	order.StateReadyForDelivery,
	order.StateOutForDelivery,
	order.StateReadyForCollection,
}

type LatLon struct {
	Lat float64
	Lon float64
}

type RouteRequest struct {
	ChannelID types.ID
	// Location is the driver's current position, the route origin.
	Location *LatLon
	// Window defaults to today when zero.
	Window order.Window
	// IsDelivery defaults to true when nil.
	IsDelivery *bool
}

type Route struct {
	Orders []order.Order `json:"orders"`
	URL    string        `json:"url"`
	// DriveSeconds is the estimated driving time, zero when no estimate was made.
	DriveSeconds int64 `json:"driveSeconds,omitempty"`
}
