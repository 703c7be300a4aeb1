package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/crop-advisory/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour. MaxRetries of 0
// disables retries; callers own retry policy by default.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// Option customises a provider.
type Option func(*providerOptions)

type providerOptions struct {
	baseURL string
	backoff BackoffConfig
}

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) Option {
	return func(o *providerOptions) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithBackoff enables retries on upstream failures.
func WithBackoff(b BackoffConfig) Option {
	return func(o *providerOptions) {
		o.backoff = b
	}
}

func applyOptions(defaultURL string, opts []Option) providerOptions {
	o := providerOptions{
		baseURL: defaultURL,
		backoff: BackoffConfig{
			MaxRetries:      0,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError carries the HTTP status of a response the breaker counted as a failure.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", e.err, e.code)
}

func (e *statusError) Unwrap() error {
	return e.err
}

// doRequestWithResilience executes the HTTP request behind a circuit breaker,
// optionally retrying upstream failures with exponential backoff. Every error it
// returns is a *weather.FetchError. 4xx responses do not count against the
// breaker and are never retried.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, &weather.FetchError{Provider: provider, Kind: weather.KindConfig, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, &weather.FetchError{Provider: provider, Kind: weather.KindConfig, Err: errInvalidConfig}
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, &weather.FetchError{Provider: provider, Kind: weather.KindUpstream, Err: ctx.Err()}
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return nil, &weather.FetchError{Provider: provider, Kind: weather.KindInvalidRequest, Err: err}
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			// Rate limiting and server errors count as breaker failures.
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, &statusError{code: resp.StatusCode, err: errRateLimited}
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, &statusError{code: resp.StatusCode, err: errServerError}
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, &weather.FetchError{Provider: provider, Kind: weather.KindUpstream, Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			return nil, unexpectedStatus(provider, resp)
		}

		fe := &weather.FetchError{Provider: provider, Kind: weather.KindUpstream, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			fe.StatusCode = se.code
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			fe.Err = fmt.Errorf("%w: %v", errCircuitOpen, err)
			return nil, fe
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, fe
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &weather.FetchError{Provider: provider, Kind: weather.KindUpstream, Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}

// unexpectedStatus closes resp and classifies its non-2xx status.
func unexpectedStatus(provider string, resp *http.Response) *weather.FetchError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = fmt.Errorf("%w: %d: %s", errUnexpected, resp.StatusCode, msg)
	}

	kind := weather.KindUpstream
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		kind = weather.KindInvalidRequest
	}

	return &weather.FetchError{Provider: provider, Kind: kind, StatusCode: resp.StatusCode, Err: err}
}

// decodeError wraps a response body that could not be parsed.
func decodeError(provider string, err error) *weather.FetchError {
	return &weather.FetchError{Provider: provider, Kind: weather.KindUpstream, Err: fmt.Errorf("decode response: %w", err)}
}
