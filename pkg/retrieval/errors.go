package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure for retry decisions and for the caller.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNotFound: the handle or message does not exist or has expired.
	KindNotFound
	// KindUnauthorized: the session credential was rejected.
	KindUnauthorized
	// KindTransient: a network or backend hiccup; retried with backoff.
	KindTransient
	// KindProtocol: malformed request or reply. Never retried.
	KindProtocol
	// KindIncomplete: limits exhausted before the decoder reached a decision.
	KindIncomplete
	// KindSessionExpired: the session must be re-established outside the engine.
	KindSessionExpired
	// KindCanceled: the caller canceled the retrieval.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransient:
		return "transient"
	case KindProtocol:
		return "protocol"
	case KindIncomplete:
		return "incomplete"
	case KindSessionExpired:
		return "session_expired"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether the chunk reader may retry a call failing with k.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// Error is the typed failure returned by sessions and the chunk reader.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
	// RetryAfter is a backend-provided minimum delay before retrying.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is shorthand for NewError with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind of err. Context errors map to KindCanceled and
// KindIncomplete (deadline); anything untyped is KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindIncomplete
	}
	return KindUnknown
}

// RetryAfter returns the backend retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var re *Error
	if errors.As(err, &re) {
		return re.RetryAfter
	}
	return 0
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
