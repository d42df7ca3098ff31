// Package apperr carries the error kinds every ledger operation reports.
package apperr

import "errors"

// Kind is a stable, caller-visible error category.
type Kind string

const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	InsufficientFunds Kind = "insufficient_funds"
	SelfTransfer      Kind = "self_transfer"
	DuplicateEvent    Kind = "duplicate_event"
	SignatureMismatch Kind = "signature_mismatch"
	Conflict          Kind = "conflict"
	StoreUnavailable  Kind = "store_unavailable"
	Unauthenticated   Kind = "unauthenticated"
	Forbidden         Kind = "forbidden"
	Upstream          Kind = "upstream_unavailable"
	Internal          Kind = "internal"
)

// Error is a classified error. Msg is safe to show to callers; Err is not.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New returns a classified error without a cause. Use it for sentinels.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of the first classified error in err's chain.
// Unclassified errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Message returns the caller-safe message for err. Unclassified errors never
// leak their text.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	return "internal error"
}

// Retryable reports whether the operation may be safely resent.
func Retryable(err error) bool {
	return KindOf(err) == StoreUnavailable
}
