// Package errs defines the error taxonomy shared by every domain
// package: validation, not-found, conflict, transport, decode,
// process and state failures all carry a Kind so the admin HTTP layer
// can map them to a status code without string matching.
package errs

import "fmt"

// Kind classifies an error for the purposes of HTTP status mapping
// and logging.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTransport
	KindDecode
	KindProcess
	KindState
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindProcess:
		return "process"
	case KindState:
		return "state"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a tagged error. Construct one with the Kind-specific
// helpers below rather than this struct directly.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap lets errors.Is/As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Kind reports the taxonomy bucket, used by the HTTP layer to pick a
// status code.
func (e *Error) Kind() Kind { return e.kind }

func newErr(k Kind, msg string) *Error { return &Error{kind: k, msg: msg} }

// Wrap tags an existing error with a Kind, preserving it for
// errors.Is/As via Unwrap.
func Wrap(k Kind, msg string, cause error) *Error { return &Error{kind: k, msg: msg, err: cause} }

func Validation(format string, args ...any) *Error { return newErr(KindValidation, fmt.Sprintf(format, args...)) }
func NotFound(format string, args ...any) *Error   { return newErr(KindNotFound, fmt.Sprintf(format, args...)) }
func Conflict(format string, args ...any) *Error   { return newErr(KindConflict, fmt.Sprintf(format, args...)) }
func Transport(format string, args ...any) *Error  { return newErr(KindTransport, fmt.Sprintf(format, args...)) }
func Decode(format string, args ...any) *Error     { return newErr(KindDecode, fmt.Sprintf(format, args...)) }
func Process(format string, args ...any) *Error    { return newErr(KindProcess, fmt.Sprintf(format, args...)) }
func State(format string, args ...any) *Error      { return newErr(KindState, fmt.Sprintf(format, args...)) }
func Fatal(format string, args ...any) *Error      { return newErr(KindFatal, fmt.Sprintf(format, args...)) }

// KindOf unwraps err looking for a tagged *Error and returns its
// Kind, or KindUnknown if none is found in the chain.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
