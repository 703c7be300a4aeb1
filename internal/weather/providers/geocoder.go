package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/crop-advisory/internal/weather"
)

// GoogleGeocoder resolves city/country pairs through the Google Geocoding API.
// The underlying library keeps its key in a package variable, so calls are
// serialized.
type GoogleGeocoder struct {
	mu     sync.Mutex
	apiKey string
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, city, country string) (weather.Coordinates, error) {
	if g.apiKey == "" {
		return weather.Coordinates{}, errors.New("geocoder api key is not configured")
	}
	if strings.TrimSpace(city) == "" {
		return weather.Coordinates{}, errors.New("city is required for geocoding")
	}
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    city,
		Country: country,
	})
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocode %s,%s: %w", city, country, err)
	}

	return weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}
