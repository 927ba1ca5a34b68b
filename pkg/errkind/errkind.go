// Package errkind classifies the errors this node's components raise
// so the Work Loop can branch on failure class (retry, stay
// unhealthy, quit, shut down) instead of matching error strings.
package errkind

import "fmt"

// Kind is one of the error classes spec'd for the core.
type Kind string

const (
	RpcTransient         Kind = "rpc_transient"
	RpcPermanent         Kind = "rpc_permanent"
	Decode               Kind = "decode"
	BlobTransient        Kind = "blob_transient"
	BlobAuth             Kind = "blob_auth"
	ContainerUnreachable Kind = "container_unreachable"
	OpFailed             Kind = "op_failed"
	ExpiredRun           Kind = "expired_run"
	Misconfiguration     Kind = "misconfiguration"
	Cancelled            Kind = "cancelled"
)

// Error wraps an underlying error with its Kind.
type Error struct {
	kind Kind
	err  error
}

// New wraps err with the given kind.
func New(kind Kind, err error) *Error {
	return &Error{kind: kind, err: err}
}

// Newf builds a Kind error directly from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.err == nil {
		return string(e.kind)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var classified *Error
	for err != nil {
		if c, ok := err.(*Error); ok {
			classified = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if classified == nil {
		return "", false
	}
	return classified.kind, true
}

// IsTransient reports whether kind is one the Work Loop should retry
// next tick rather than act on.
func IsTransient(kind Kind) bool {
	switch kind {
	case RpcTransient, BlobTransient, ContainerUnreachable:
		return true
	default:
		return false
	}
}
