package weather

import (
	"context"
)

// Provider abstracts the upstream weather source (e.g. OpenWeather One Call).
// Fetch must return a *FetchError on failure.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, coords Coordinates) (Snapshot, error)
}

// Geocoder resolves a named place to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (Coordinates, error)
}
