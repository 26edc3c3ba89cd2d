// Package common defines shared constants, sentinel errors, and small helpers
// used across the client and server layers of gophauth. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

var (
	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors, one per failure kind surfaced to callers
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorConflict     = errors.New("conflict")

	// token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrMissingSecret = errors.New("signing secret is not configured")
)

// kinds lists the caller-facing failure kinds in match order.
var kinds = []error{
	ErrorUnauthorized,
	ErrorForbidden,
	ErrorConflict,
	ErrorNotFound,
}

// KindOf returns the failure kind sentinel carried by err. Errors marked with
// Internal, and anything that is not one of the domain kinds, are reported as
// ErrorInternal.
func KindOf(err error) error {
	if errors.Is(err, ErrorInternal) {
		return ErrorInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrorInternal
}

// KindLabel returns a short label for the kind of err, suitable for metrics:
// "ok" for nil, otherwise one of "unauthorized", "forbidden", "conflict",
// "not_found" or "internal".
func KindLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorForbidden:
		return "forbidden"
	case ErrorConflict:
		return "conflict"
	case ErrorNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Fail builds a domain failure of the given kind. msg is the human readable
// text shown to the caller; code is the machine readable identifier used in
// logs and metrics.
func Fail(kind error, code, msg string) error {
	return oops.Code(code).Public(msg).Wrapf(kind, "%s", msg)
}

// Internal marks err as an unexpected failure so that transports never leak
// its text. A nil err stays nil.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrorInternal, err)
}

// PublicMessage returns the caller-safe message for err. Internal failures
// always yield fallback.
func PublicMessage(err error, fallback string) string {
	kind := KindOf(err)
	if kind == ErrorInternal {
		return fallback
	}
	return oops.GetPublic(err, kind.Error())
}

// CodeOf returns the machine readable code attached to err, or "" when err
// carries none.
func CodeOf(err error) string {
	if o, ok := oops.AsOops(err); ok {
		if c := o.Code(); c != nil {
			return fmt.Sprint(c)
		}
	}
	return ""
}
