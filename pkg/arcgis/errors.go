package arcgis

import (
	"errors"
	"fmt"
)

// Kind discriminates feature service failures so callers can decide between
// aborting a run and skipping a record.
type Kind int

const (
	// KindConnection covers unreachable portals and failed authentication.
	KindConnection Kind = iota
	// KindQuery covers rejected predicates and unknown fields.
	KindQuery
	// KindUpdate covers rejected applyEdits writes.
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	case KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Error wraps a feature service failure with its taxonomy kind and, when the
// service reported one, the ArcGIS error code from the response body.
type Error struct {
	Kind Kind
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("arcgis: %s error (code %d): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("arcgis: %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code int, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func isKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// IsConnection reports whether err is a connection/authentication failure.
func IsConnection(err error) bool { return isKind(err, KindConnection) }

// IsQuery reports whether err is a rejected query.
func IsQuery(err error) bool { return isKind(err, KindQuery) }

// IsUpdate reports whether err is a rejected write.
func IsUpdate(err error) bool { return isKind(err, KindUpdate) }

const (
	codeInvalidToken = 498
	codeTokenNeeded  = 499
)

// serverError is the error object ArcGIS embeds in HTTP 200 bodies.
type serverError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *serverError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %v", e.Message, e.Details)
	}
	return e.Message
}

// tokenExpired reports whether the service rejected the current token.
func (e *serverError) tokenExpired() bool {
	return e.Code == codeInvalidToken || e.Code == codeTokenNeeded
}
