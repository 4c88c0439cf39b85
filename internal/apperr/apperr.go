// Package apperr centralizes the error taxonomy the streaming server
// translates into HTTP status codes: Unauthorized, BadRequest, NotFound,
// Forbidden, Upstream, Storage, Internal.
package apperr

import (
	"errors"
	"net/http"
)

type kind int

const (
	kindUnauthorized kind = iota
	kindBadRequest
	kindNotFound
	kindForbidden
	kindUpstream
	kindStorage
	kindInternal
	kindRangeNotSatisfiable
	kindUnsupportedMediaType
)

// Error wraps an underlying cause with a taxonomy kind for HTTP translation.
type Error struct {
	kind kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func newErr(k kind, msg string, cause error) *Error {
	return &Error{kind: k, msg: msg, err: cause}
}

func Unauthorized(msg string) error            { return newErr(kindUnauthorized, msg, nil) }
func BadRequest(msg string) error              { return newErr(kindBadRequest, msg, nil) }
func NotFound(msg string) error                { return newErr(kindNotFound, msg, nil) }
func Forbidden(msg string) error               { return newErr(kindForbidden, msg, nil) }
func RangeNotSatisfiable(msg string) error     { return newErr(kindRangeNotSatisfiable, msg, nil) }
func UnsupportedMediaType(msg string) error    { return newErr(kindUnsupportedMediaType, msg, nil) }
func Upstream(msg string, cause error) error   { return newErr(kindUpstream, msg, cause) }
func Storage(msg string, cause error) error    { return newErr(kindStorage, msg, cause) }
func Internal(msg string, cause error) error   { return newErr(kindInternal, msg, cause) }

// StatusCode maps err to the HTTP status the spec's error taxonomy assigns.
// Unrecognized errors map to 500, matching the "Internal" default.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.kind {
	case kindUnauthorized:
		return http.StatusUnauthorized
	case kindBadRequest:
		return http.StatusBadRequest
	case kindNotFound:
		return http.StatusNotFound
	case kindForbidden:
		return http.StatusForbidden
	case kindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case kindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case kindUpstream:
		return http.StatusBadGateway
	case kindStorage, kindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
