package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a gateway failure.
type ErrorKind string

const (
	// KindMalformedURL means the URL could not be used; no request was made.
	KindMalformedURL ErrorKind = "malformed_url"

	// KindTransport covers network failures and non-2xx responses.
	KindTransport ErrorKind = "transport"

	// KindDecode means the response body did not match the expected schema.
	KindDecode ErrorKind = "decode"
)

// Sentinels for errors.Is checks against a *FetchError.
var (
	ErrMalformedURL = errors.New("malformed url")
	ErrTransport    = errors.New("transport error")
	ErrDecode       = errors.New("decode error")
)

// FetchError is the single failure type returned by the gateway.
type FetchError struct {
	Kind ErrorKind
	URL  string

	// StatusCode is set for transport errors caused by a non-2xx response.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %q: %s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrMalformedURL:
		return e.Kind == KindMalformedURL
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrDecode:
		return e.Kind == KindDecode
	default:
		return false
	}
}

// KindOf returns the kind of a gateway error, or "" if err is not a *FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
