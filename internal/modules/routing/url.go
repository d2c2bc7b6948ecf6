package routing

import (
	"net/url"
	"strings"

	"fulfillments/internal/maps"
)

const directionsBase = "https://www.google.com/maps/dir/"

// DirectionsURL builds a Google Maps directions link from origin through the
// waypoints, in order, to destination.
func DirectionsURL(origin, destination maps.Place, waypoints []maps.Place) string {
	names := make([]string, len(waypoints))
	ids := make([]string, len(waypoints))
	for i, w := range waypoints {
		names[i] = w.Name
		ids[i] = w.PlaceID
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", origin.Name)
	q.Set("origin_place_id", origin.PlaceID)
	q.Set("destination", destination.Name)
	q.Set("destination_place_id", destination.PlaceID)
	if len(waypoints) > 0 {
		q.Set("waypoints", strings.Join(names, "|"))
		q.Set("waypoint_place_ids", strings.Join(ids, "|"))
	}
	q.Set("travelmode", "driving")
	return directionsBase + "?" + q.Encode()
}
