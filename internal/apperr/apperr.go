// Package apperr is the closed error taxonomy from spec.md §7, mapped to
// HTTP status codes so the dispatcher can render a uniform
// {error, details?, available_*?} body regardless of which component raised.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindConfig Kind = iota
	KindNetwork
	KindRateLimit
	KindUpstreamSchema
	KindMalformedFeed
	KindNotFound
	KindInvalidParameter
	KindClientDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindNetwork:
		return "NetworkError"
	case KindRateLimit:
		return "RateLimitExceeded"
	case KindUpstreamSchema:
		return "UpstreamSchema"
	case KindMalformedFeed:
		return "MalformedFeed"
	case KindNotFound:
		return "NotFound"
	case KindInvalidParameter:
		return "InvalidParameter"
	case KindClientDisconnected:
		return "ClientDisconnected"
	default:
		return "Unknown"
	}
}

// HTTPStatus is the status code mapping from spec.md §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidParameter:
		return http.StatusBadRequest
	case KindClientDisconnected:
		return 499
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindMalformedFeed, KindUpstreamSchema, KindNetwork:
		return http.StatusServiceUnavailable
	case KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a taxonomy-tagged error carrying optional structured details for
// the dispatcher's "available_*" hint fields (e.g. valid provider names).
type Error struct {
	Kind      Kind
	Message   string
	Available []string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithAvailable attaches the "available_*" hints the dispatcher surfaces for
// unknown-provider/endpoint 404s.
func (e *Error) WithAvailable(items []string) *Error {
	e.Available = items
	return e
}

// As extracts an *Error from err, defaulting to an internal KindConfig error
// of unknown origin so callers always get a Kind to map to a status code.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindConfig, Message: "unclassified error", Err: err}
}
