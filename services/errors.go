package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure taxonomy surfaced to callers. Every engine failure
// carries exactly one kind so the API layer can map it to an accurate status
// and message. Only KindStoreUnavailable is safe to retry verbatim — events
// are all-or-nothing, and the AlreadyLogged/NotLogged guards make the retry
// idempotent.
type ErrorKind string

const (
	KindAlreadyLogged          ErrorKind = "already_logged"
	KindNotLogged              ErrorKind = "not_logged"
	KindChallengeAlreadyJoined ErrorKind = "challenge_already_joined"
	KindChallengeNotJoined     ErrorKind = "challenge_not_joined"
	KindChallengeExpired       ErrorKind = "challenge_expired"
	KindConsistency            ErrorKind = "consistency_error"
	KindStoreUnavailable       ErrorKind = "store_unavailable"
	KindNotFound               ErrorKind = "not_found"
)

// DomainError is the engine's error type.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Cause }

// NewDomainError builds a terminal domain failure.
func NewDomainError(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapStore marks an unexpected persistence failure as transient.
func wrapStore(op string, cause error) *DomainError {
	return &DomainError{Kind: KindStoreUnavailable, Message: op, Cause: cause}
}

// IsKind reports whether err (or anything it wraps) is a DomainError of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, or KindStoreUnavailable when the error
// is not a DomainError (unclassified failures are treated as transient store
// trouble so the caller may retry the whole event).
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStoreUnavailable
}
