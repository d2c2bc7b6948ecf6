// README: Google Places lookups used to turn place ids and coordinates into route stops.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

// ErrNoResult is returned when the API answered but had no usable place.
var ErrNoResult = errors.New("no place found")

// Place is a resolved stop on a route.
type Place struct {
	Name    string
	PlaceID string
	Address string
}

// Geocoder handles interactions with the Google Places and Directions APIs.
type Geocoder struct {
	client   *maps.Client
	language string
	region   string
}

// NewGeocoder creates a Geocoder with the given API key. language and region
// bias results and may be empty.
func NewGeocoder(apiKey, language, region string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, language: language, region: region}, nil
}

// ResolvePlace looks up the display name of a place id.
func (g *Geocoder) ResolvePlace(ctx context.Context, placeID string) (Place, error) {
	r := &maps.PlaceDetailsRequest{
		PlaceID:  placeID,
		Language: g.language,
		Region:   g.region,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskName,
			maps.PlaceDetailsFieldMaskPlaceID,
			maps.PlaceDetailsFieldMaskFormattedAddress,
		},
	}
	res, err := g.client.PlaceDetails(ctx, r)
	if err != nil {
		return Place{}, fmt.Errorf("place details api error: %w", err)
	}
	if res.Name == "" {
		return Place{}, ErrNoResult
	}
	return Place{Name: res.Name, PlaceID: placeID, Address: res.FormattedAddress}, nil
}

// FindPlaceID returns the place id of the best text-search match for query,
// for example "51.5072,-0.1276".
func (g *Geocoder) FindPlaceID(ctx context.Context, query string) (string, error) {
	r := &maps.TextSearchRequest{
		Query:    query,
		Language: g.language,
		Region:   g.region,
	}
	resp, err := g.client.TextSearch(ctx, r)
	if err != nil {
		return "", fmt.Errorf("places api error: %w", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].PlaceID == "" {
		return "", ErrNoResult
	}
	return resp.Results[0].PlaceID, nil
}
