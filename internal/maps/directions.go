package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"
)

// EstimateDrive returns the total driving time from origin through waypoints to
// destination, all given as place ids, visiting the waypoints in order.
func (g *Geocoder) EstimateDrive(ctx context.Context, origin, destination string, waypoints []string) (time.Duration, error) {
	r := &maps.DirectionsRequest{
		Origin:      "place_id:" + origin,
		Destination: "place_id:" + destination,
		Mode:        maps.TravelModeDriving,
		Language:    g.language,
		Region:      g.region,
	}
	for _, w := range waypoints {
		r.Waypoints = append(r.Waypoints, "place_id:"+w)
	}

	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}

	var total time.Duration
	for _, leg := range routes[0].Legs {
		total += leg.Duration
	}
	return total, nil
}
