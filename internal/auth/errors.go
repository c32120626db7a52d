package auth

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
)

// AccessError is an access-denied outcome. It unwraps to one of the
// sentinel errors above and carries the HTTP status to answer with.
type AccessError struct {
	Kind error
	Msg  string
}

func (e *AccessError) Error() string { return e.Msg }

func (e *AccessError) Unwrap() error { return e.Kind }

// StatusCode maps the denial to 401, 403 or 429.
func (e *AccessError) StatusCode() int {
	switch e.Kind {
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusForbidden
	}
}

// Reason is a short label for metrics.
func (e *AccessError) Reason() string {
	switch e.Kind {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrRateLimited:
		return "rate_limited"
	default:
		return "forbidden"
	}
}

// IsAccessDenied reports whether err is any access-denied outcome.
func IsAccessDenied(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

func denied(kind error, msg string) error { return &AccessError{Kind: kind, Msg: msg} }
