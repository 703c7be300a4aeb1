package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/crop-advisory/internal/weather"
)

var belgaum = weather.Coordinates{Lat: 15.8497, Lon: 74.4977}

func newServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func requireFetchError(t *testing.T, err error) *weather.FetchError {
	t.Helper()
	var fe *weather.FetchError
	require.True(t, errors.As(err, &fe), "expected *weather.FetchError, got %T: %v", err, err)
	return fe
}

func TestOpenWeatherFetchParsesCurrentAndDaily(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"current": {"dt": 1717243200, "temp": 27.5},
			"daily": [{"rain": 10.5}, {}, {"rain": 4}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", WithBaseURL(srv.URL))
	snap, err := p.Fetch(context.Background(), belgaum)
	require.NoError(t, err)

	require.NotNil(t, snap.CurrentTemp)
	assert.Equal(t, 27.5, *snap.CurrentTemp)
	assert.Equal(t, []float64{10.5, 0, 4}, snap.DailyRainfall)
	assert.Equal(t, "openweathermap", snap.Provider)
	assert.Equal(t, time.Unix(1717243200, 0).UTC(), snap.FetchedAt)

	assert.Contains(t, gotQuery, "units=metric")
	assert.Contains(t, gotQuery, "appid=secret")
	assert.Contains(t, gotQuery, "lat=15.8497")
}

func TestOpenWeatherFetchAbsentFields(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"timezone": "Asia/Kolkata"}`, nil)

	p := NewOpenWeatherProvider(srv.Client(), "secret", WithBaseURL(srv.URL))
	snap, err := p.Fetch(context.Background(), belgaum)
	require.NoError(t, err)

	assert.Nil(t, snap.CurrentTemp)
	assert.Nil(t, snap.DailyRainfall)
}

func TestOpenWeatherFetchEmptyDailyIsNotAbsent(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"current": {"temp": 0}, "daily": []}`, nil)

	p := NewOpenWeatherProvider(srv.Client(), "secret", WithBaseURL(srv.URL))
	snap, err := p.Fetch(context.Background(), belgaum)
	require.NoError(t, err)

	require.NotNil(t, snap.CurrentTemp)
	assert.Equal(t, 0.0, *snap.CurrentTemp)
	require.NotNil(t, snap.DailyRainfall)
	assert.Empty(t, snap.DailyRainfall)
}

func TestOpenWeatherMissingKeyIsConfigError(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusOK, `{}`, &calls)

	p := NewOpenWeatherProvider(srv.Client(), "", WithBaseURL(srv.URL))
	_, err := p.Fetch(context.Background(), belgaum)

	fe := requireFetchError(t, err)
	assert.Equal(t, weather.KindConfig, fe.Kind)
	assert.False(t, fe.Retryable())
	assert.ErrorIs(t, err, weather.ErrMissingAPIKey)
	assert.Zero(t, atomic.LoadInt32(&calls), "no upstream call without a key")
}

func TestFetchClassifiesClientErrors(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusBadRequest, `{"cod":"400","message":"wrong latitude"}`, &calls)

	p := NewOpenWeatherProvider(srv.Client(), "secret",
		WithBaseURL(srv.URL),
		WithBackoff(BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond}),
	)
	_, err := p.Fetch(context.Background(), belgaum)

	fe := requireFetchError(t, err)
	assert.Equal(t, weather.KindInvalidRequest, fe.Kind)
	assert.Equal(t, http.StatusBadRequest, fe.StatusCode)
	assert.False(t, fe.Retryable())
	assert.Contains(t, fe.Error(), "wrong latitude")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestFetchClassifiesServerErrors(t *testing.T) {
	var calls int32
	srv := newServer(t, http.StatusBadGateway, `oops`, &calls)

	p := NewOpenWeatherProvider(srv.Client(), "secret", WithBaseURL(srv.URL))
	_, err := p.Fetch(context.Background(), belgaum)

	fe := requireFetchError(t, err)
	assert.Equal(t, weather.KindUpstream, fe.Kind)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.True(t, fe.Retryable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no automatic retry by default")
}

func TestFetchRetriesWhenBackoffEnabled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"current": {"temp": 21}}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret",
		WithBaseURL(srv.URL),
		WithBackoff(BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}),
	)
	snap, err := p.Fetch(context.Background(), belgaum)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentTemp)
	assert.Equal(t, 21.0, *snap.CurrentTemp)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchNetworkErrorIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOpenWeatherProvider(http.DefaultClient, "secret", WithBaseURL(url))
	_, err := p.Fetch(context.Background(), belgaum)

	fe := requireFetchError(t, err)
	assert.Equal(t, weather.KindUpstream, fe.Kind)
	assert.Zero(t, fe.StatusCode)
}

func TestFetchMalformedBodyIsUpstream(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{not json`, nil)

	p := NewOpenWeatherProvider(srv.Client(), "secret", WithBaseURL(srv.URL))
	_, err := p.Fetch(context.Background(), belgaum)

	fe := requireFetchError(t, err)
	assert.Equal(t, weather.KindUpstream, fe.Kind)
}

func TestWeatherAPIFetch(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"current": {"temp_c": 31.2},
		"forecast": {"forecastday": [
			{"day": {"totalprecip_mm": 1.5}},
			{"day": {"totalprecip_mm": 2.5}}
		]}
	}`, nil)

	p := NewWeatherAPIProvider(srv.Client(), "secret", WithBaseURL(srv.URL))
	snap, err := p.Fetch(context.Background(), belgaum)
	require.NoError(t, err)

	require.NotNil(t, snap.CurrentTemp)
	assert.Equal(t, 31.2, *snap.CurrentTemp)
	assert.Equal(t, []float64{1.5, 2.5}, snap.DailyRainfall)
}

func TestWeatherAPIMissingKey(t *testing.T) {
	p := NewWeatherAPIProvider(http.DefaultClient, "")
	_, err := p.Fetch(context.Background(), belgaum)

	fe := requireFetchError(t, err)
	assert.Equal(t, weather.KindConfig, fe.Kind)
}

func TestOpenMeteoFetch(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"current": {"time": "2025-06-01T12:00", "temperature_2m": 24.4},
		"daily": {"precipitation_sum": [3.2, null, 0.8]}
	}`, nil)

	p := NewOpenMeteoProvider(srv.Client(), WithBaseURL(srv.URL))
	snap, err := p.Fetch(context.Background(), belgaum)
	require.NoError(t, err)

	require.NotNil(t, snap.CurrentTemp)
	assert.Equal(t, 24.4, *snap.CurrentTemp)
	assert.Equal(t, []float64{3.2, 0, 0.8}, snap.DailyRainfall)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), snap.FetchedAt)
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New("", http.DefaultClient, "k")
	require.NoError(t, err)
	assert.Equal(t, "openweathermap", p.Name())

	p, err = New("weatherapi", http.DefaultClient, "k")
	require.NoError(t, err)
	assert.Equal(t, "weatherapi", p.Name())

	p, err = New("openmeteo", http.DefaultClient, "")
	require.NoError(t, err)
	assert.Equal(t, "openmeteo", p.Name())

	_, err = New("darksky", http.DefaultClient, "k")
	assert.Error(t, err)
}

func TestGoogleGeocoderRequiresKey(t *testing.T) {
	g := NewGoogleGeocoder("")
	_, err := g.Geocode(context.Background(), "Belgaum", "India")
	assert.Error(t, err)
}
