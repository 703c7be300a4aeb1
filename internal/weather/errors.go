package weather

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when the provider credential is not configured.
var ErrMissingAPIKey = errors.New("weather api key is not configured")

// ErrorKind classifies a failed upstream weather fetch.
type ErrorKind int

const (
	// KindUpstream covers network failures, 5xx responses, rate limiting and an
	// open circuit. Callers may retry these.
	KindUpstream ErrorKind = iota
	// KindConfig means the provider is not usable as configured (missing
	// credential). Retrying does not help.
	KindConfig
	// KindInvalidRequest means the provider rejected the request with a 4xx.
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "upstream"
	}
}

// FetchError reports a failed weather fetch. No fallback value accompanies it.
type FetchError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int // HTTP status when the provider answered, 0 otherwise
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weather fetch from %s failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("weather fetch from %s failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller-level retry may succeed.
func (e *FetchError) Retryable() bool {
	return e.Kind == KindUpstream
}

// asFetchError returns err as a *FetchError, classifying unknown errors as
// upstream failures.
func asFetchError(provider string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Provider: provider, Kind: KindUpstream, Err: err}
}
