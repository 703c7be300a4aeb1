package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/crop-advisory/internal/weather"
)

const openWeatherOneCallURL = "https://api.openweathermap.org/data/2.5/onecall"

// OpenWeatherProvider implements the weather.Provider interface for the
// OpenWeatherMap One Call API (current conditions plus daily forecast).
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	o := applyOptions(openWeatherOneCallURL, opts)

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: o.baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: o.backoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, coords weather.Coordinates) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, &weather.FetchError{Provider: p.name, Kind: weather.KindConfig, Err: weather.ErrMissingAPIKey}
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
		values.Set("units", "metric")
		values.Set("appid", p.apiKey)

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *struct {
			Dt   int64    `json:"dt"`
			Temp *float64 `json:"temp"`
		} `json:"current"`
		Daily []struct {
			Rain *float64 `json:"rain"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, decodeError(p.name, err)
	}

	snap := weather.Snapshot{
		Coordinates: coords,
		FetchedAt:   time.Now().UTC(),
		Provider:    p.name,
	}

	if payload.Current != nil {
		snap.CurrentTemp = payload.Current.Temp
		if payload.Current.Dt > 0 {
			snap.FetchedAt = time.Unix(payload.Current.Dt, 0).UTC()
		}
	}

	// Days without rain omit the field entirely.
	if payload.Daily != nil {
		snap.DailyRainfall = make([]float64, 0, len(payload.Daily))
		for _, d := range payload.Daily {
			var mm float64
			if d.Rain != nil {
				mm = *d.Rain
			}
			snap.DailyRainfall = append(snap.DailyRainfall, mm)
		}
	}

	return snap, nil
}
