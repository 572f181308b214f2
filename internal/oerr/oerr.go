// Package oerr defines the error taxonomy shared by every layer of the
// core (§7): wire decode, object store, and dispatch all fail through the
// same structured Error so that Kind survives up to wherever it needs to be
// turned into an op rval, a dropped message, or a fatal startup error.
//
// It lives below the root package so that internal/wire, internal/store,
// and internal/dispatch can all depend on it without creating an import
// cycle back through the root osd package, which re-exports it as osd.Error
// the way the teacher's constants.go re-exports internal/constants values.
package oerr

import "fmt"

// Kind categorizes a failure per the §7 taxonomy.
type Kind string

const (
	InvalidArgument    Kind = "invalid_argument"
	Truncated          Kind = "truncated"
	Corrupted          Kind = "corrupted"
	UnsupportedVersion Kind = "unsupported_version"
	UnsupportedOp      Kind = "unsupported_op"
	NotFound           Kind = "not_found"
	OutOfMemory        Kind = "out_of_memory"
	BadAddress         Kind = "bad_address"
	Timeout            Kind = "timeout"
)

// Errno returns the conventional negative errno value a Kind encodes as
// when it lands in an op's rval (§4.4, scenario 5: "READ's rval == -ENOENT
// (or the equivalent NotFound code)").
func (k Kind) Errno() int32 {
	switch k {
	case NotFound:
		return -2 // ENOENT
	case InvalidArgument:
		return -22 // EINVAL
	case OutOfMemory:
		return -12 // ENOMEM
	case BadAddress:
		return -14 // EFAULT
	case UnsupportedOp:
		return -95 // EOPNOTSUPP
	case Timeout:
		return -110 // ETIMEDOUT
	default: // Truncated, Corrupted, UnsupportedVersion never reach an op rval
		return -5 // EIO
	}
}

// Error is the structured error type threaded through the core.
type Error struct {
	Op    string // the operation that failed, e.g. "wire.DecodeRequest", "store.Write"
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison against another *Error by Kind alone,
// so call sites can write errors.Is(err, oerr.New("", oerr.NotFound, "")).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// New constructs a plain Error.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap attaches op/kind context to an existing error.
func Wrap(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	msg := ""
	if inner != nil {
		msg = inner.Error()
	}
	return &Error{Op: op, Kind: kind, Msg: msg, Inner: inner}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
