package client

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the search flow can surface.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound means the username does not exist.
	KindNotFound
	// KindNetworkFailure covers transport errors, bad statuses and malformed bodies.
	KindNetworkFailure
	// KindEmptyResult means the lookup worked but nobody related is live.
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNetworkFailure:
		return "network failure"
	case KindEmptyResult:
		return "empty result"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation.
type Error struct {
	Kind     Kind
	Op       string
	Username string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %s", e.Op, e.Username, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrNetworkFailure = &Error{Kind: KindNetworkFailure}
	ErrEmptyResult    = &Error{Kind: KindEmptyResult}
)

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
