// Package apperr classifies reporter failures so callers can tell an
// unreachable upstream from a malformed record or a catalog inconsistency.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// KindTransport: upstream unreachable or answered non-2xx. Aborts the run.
	KindTransport Kind = iota + 1
	// KindSchema: a response or record is missing or has malformed fields.
	KindSchema
	// KindLookup: a prebuilt index (timezones, component groups) lacks a key
	// the upstream data refers to.
	KindLookup
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindSchema:
		return "schema"
	case KindLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Error wraps an operation, human-facing message, and underlying error.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s error: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport constructs a KindTransport error.
func Transport(op, msg string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Msg: msg, Err: err}
}

// Schema constructs a KindSchema error.
func Schema(op, msg string, err error) error {
	return &Error{Kind: KindSchema, Op: op, Msg: msg, Err: err}
}

// Lookup constructs a KindLookup error.
func Lookup(op, msg string) error {
	return &Error{Kind: KindLookup, Op: op, Msg: msg}
}

// Is reports whether err, or anything in its wrap tree, is an Error of kind k.
// Joined errors match when any member matches.
func Is(err error, k Kind) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		return e.Kind == k || Is(e.Err, k)
	case interface{ Unwrap() []error }:
		for _, member := range e.Unwrap() {
			if Is(member, k) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return Is(e.Unwrap(), k)
	default:
		return false
	}
}

// KindOf returns the kind of the first Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
