package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/crop-advisory/internal/weather"
)

const weatherAPIForecastURL = "https://api.weatherapi.com/v1/forecast.json"

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	o := applyOptions(weatherAPIForecastURL, opts)

	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: o.baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: o.backoff,
		},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, coords weather.Coordinates) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, &weather.FetchError{Provider: p.name, Kind: weather.KindConfig, Err: weather.ErrMissingAPIKey}
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "lat,lon".
		values.Set("q", fmt.Sprintf("%f,%f", coords.Lat, coords.Lon))
		values.Set("days", strconv.Itoa(weather.ForecastWindowDays))

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *struct {
			LastUpdatedEpoch int64    `json:"last_updated_epoch"`
			TempC            *float64 `json:"temp_c"`
		} `json:"current"`
		Forecast *struct {
			Forecastday []struct {
				Day struct {
					TotalPrecipMm float64 `json:"totalprecip_mm"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
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
		snap.CurrentTemp = payload.Current.TempC
		if payload.Current.LastUpdatedEpoch > 0 {
			snap.FetchedAt = time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
		}
	}

	if payload.Forecast != nil && payload.Forecast.Forecastday != nil {
		snap.DailyRainfall = make([]float64, 0, len(payload.Forecast.Forecastday))
		for _, d := range payload.Forecast.Forecastday {
			snap.DailyRainfall = append(snap.DailyRainfall, d.Day.TotalPrecipMm)
		}
	}

	return snap, nil
}
