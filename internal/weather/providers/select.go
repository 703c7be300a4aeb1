package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/crop-advisory/internal/weather"
)

// New returns the provider registered under name. Only one upstream is used
// at a time; there is no failover between providers.
func New(name string, client *http.Client, apiKey string, opts ...Option) (weather.Provider, error) {
	switch name {
	case "", "openweather":
		return NewOpenWeatherProvider(client, apiKey, opts...), nil
	case "weatherapi":
		return NewWeatherAPIProvider(client, apiKey, opts...), nil
	case "openmeteo":
		return NewOpenMeteoProvider(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", name)
	}
}
