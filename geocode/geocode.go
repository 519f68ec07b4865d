// Package geocode resolves addresses to coordinates and back through the
// Google Maps geocoding API.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

// ErrNoResults is returned when the API has no match for a query.
var ErrNoResults = errors.New("geocode: no results")

type Result struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formattedAddress"`
	PlaceID          string  `json:"placeId,omitempty"`
}

type Geocoder interface {
	Forward(ctx context.Context, address string) (Result, error)
	Reverse(ctx context.Context, lat, lng float64) (Result, error)
}

type mapsAPI interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleGeocoder calls the Maps geocoding API.
type GoogleGeocoder struct {
	client mapsAPI
	region string
}

// NewGoogleGeocoder creates a geocoder from an API key. region biases forward
// lookups toward a ccTLD such as "zm".
func NewGoogleGeocoder(apiKey, region string) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("MAPS_CREDENTIALS environment variable not set")
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, region: region}, nil
}

func (g *GoogleGeocoder) Forward(ctx context.Context, address string) (Result, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address, Region: g.region})
	if err != nil {
		return Result{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	return first(results)
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, lat, lng float64) (Result, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: lat, Lng: lng}})
	if err != nil {
		return Result{}, fmt.Errorf("reverse geocode %.6f,%.6f: %w", lat, lng, err)
	}
	return first(results)
}

func first(results []maps.GeocodingResult) (Result, error) {
	if len(results) == 0 {
		return Result{}, ErrNoResults
	}
	r := results[0]
	return Result{
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
		PlaceID:          r.PlaceID,
	}, nil
}
