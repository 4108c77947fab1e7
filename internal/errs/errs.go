// Package errs defines the engine-wide error taxonomy. Every boundary
// between components returns either nil or a *Error so callers can branch
// on Kind without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and alerting decisions.
type Kind string

const (
	InvalidInput   Kind = "invalid_input"
	NotFound       Kind = "not_found"
	Transient      Kind = "transient"
	ContractRevert Kind = "contract_revert"
	Decoding       Kind = "decoding"
	Unauthorized   Kind = "unauthorized"
	Conflict       Kind = "conflict"
	Internal       Kind = "internal"
)

// Error wraps an underlying error with a Kind so it can be classified at
// a glance without parsing messages.
type Error struct {
	kind Kind
	op   string
	err  error
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %s: %v", e.op, e.kind, e.err)
	}
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification.
func (e *Error) Kind() Kind { return e.kind }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{kind: kind, op: op, err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{kind: kind, op: op, err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind of err, defaulting to Internal when err is not
// a *Error (or nil, in which case "" is returned through an ok=false).
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return Internal, true
}

// IsRetryable reports whether an error's kind warrants a retry at the
// call site (chain-client RPC layer uses this directly).
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == Transient
}
