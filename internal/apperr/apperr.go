// Package apperr defines the error taxonomy shared by the settlement service.
// Failures that cross a package boundary carry a Kind that maps to an HTTP
// status and to retry eligibility.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	NotFound               Kind = "not_found"
	InvalidArgument        Kind = "invalid_argument"
	InvalidAmount          Kind = "invalid_amount"
	InvalidStateTransition Kind = "invalid_state_transition"
	UnsupportedProvider    Kind = "unsupported_provider"
	GatewayRejected        Kind = "gateway_rejected"
	GatewayUnavailable     Kind = "gateway_unavailable"
	UpstreamUnavailable    Kind = "upstream_unavailable"
	Conflict               Kind = "conflict"
	Unauthorized           Kind = "unauthorized"
	Internal               Kind = "internal"
)

// Error is the concrete error type behind every Kind.
type Error struct {
	Kind Kind
	Msg  string
	// Code is the provider result code for GatewayRejected errors.
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Rejected builds the GatewayRejected error for a declined provider response.
func Rejected(provider, code, resultMsg string) *Error {
	return &Error{
		Kind: GatewayRejected,
		Code: code,
		Msg:  fmt.Sprintf("%s approval rejected (resultCode=%s, resultMsg=%s)", provider, code, resultMsg),
	}
}

// As unwraps err to the outermost *Error.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the kind of err. Errors outside the taxonomy are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	for e := err; errors.As(e, &ae); e = ae.Err {
		if ae.Kind == kind {
			return true
		}
	}
	return false
}

// Retryable reports whether err is a transient infrastructure failure.
func Retryable(err error) bool {
	switch KindOf(err) {
	case GatewayUnavailable, UpstreamUnavailable:
		return true
	default:
		return false
	}
}

// ResultCode returns the provider result code carried by a GatewayRejected error.
func ResultCode(err error) string {
	var ae *Error
	for e := err; errors.As(e, &ae); e = ae.Err {
		if ae.Kind == GatewayRejected {
			return ae.Code
		}
	}
	return ""
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case InvalidArgument, InvalidAmount, UnsupportedProvider:
		return http.StatusBadRequest
	case InvalidStateTransition, Conflict:
		return http.StatusConflict
	case GatewayRejected:
		return http.StatusPaymentRequired
	case GatewayUnavailable, UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message that is safe to show to API callers.
func PublicMessage(err error) string {
	ae, ok := As(err)
	if !ok || ae.Kind == Internal {
		return "unexpected error"
	}
	if ae.Msg != "" {
		return ae.Msg
	}
	return string(ae.Kind)
}
