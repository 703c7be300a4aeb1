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

const openMeteoForecastURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, opts ...Option) *OpenMeteoProvider {
	o := applyOptions(openMeteoForecastURL, opts)

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: o.baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: o.backoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, coords weather.Coordinates) (weather.Snapshot, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", coords.Lat))
		values.Set("longitude", fmt.Sprintf("%f", coords.Lon))
		values.Set("current", "temperature_2m")
		values.Set("daily", "precipitation_sum")
		values.Set("forecast_days", strconv.Itoa(weather.ForecastWindowDays))
		values.Set("timezone", "UTC")

		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *struct {
			Time          string   `json:"time"`
			Temperature2m *float64 `json:"temperature_2m"`
		} `json:"current"`
		Daily *struct {
			PrecipitationSum []*float64 `json:"precipitation_sum"`
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
		snap.CurrentTemp = payload.Current.Temperature2m
		// Open-Meteo reports "2006-01-02T15:04" without seconds or zone.
		if ts, err := time.Parse("2006-01-02T15:04", payload.Current.Time); err == nil {
			snap.FetchedAt = ts.UTC()
		}
	}

	if payload.Daily != nil && payload.Daily.PrecipitationSum != nil {
		snap.DailyRainfall = make([]float64, 0, len(payload.Daily.PrecipitationSum))
		for _, mm := range payload.Daily.PrecipitationSum {
			var v float64
			if mm != nil {
				v = *mm
			}
			snap.DailyRainfall = append(snap.DailyRainfall, v)
		}
	}

	return snap, nil
}
