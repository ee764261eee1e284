package trickplay

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures.
//
// ErrorKind implements error so callers can match a kind directly:
//
//	if errors.Is(err, trickplay.KindLoadFailed) { ... }
type ErrorKind int

const (
	// KindInvalidInput: malformed descriptor, negative or non-finite time,
	// negative dimensions
	KindInvalidInput ErrorKind = iota + 1
	// KindLoadFailed: the media did not become ready (backend error or load timeout)
	KindLoadFailed
	// KindSeekOrRenderFault: the backend rejected the seek or reported a render error
	KindSeekOrRenderFault
	// KindCaptureFailed: no frame could be captured, or the frame was unusable
	KindCaptureFailed
	// KindCancelled: the caller context ended or the engine was closed
	KindCancelled
	// KindOutputFailed: resize, encode or write of the still failed
	KindOutputFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid-input"
	case KindLoadFailed:
		return "load-failed"
	case KindSeekOrRenderFault:
		return "seek-or-render-fault"
	case KindCaptureFailed:
		return "capture-failed"
	case KindCancelled:
		return "cancelled"
	case KindOutputFailed:
		return "output-failed"
	default:
		return "unknown"
	}
}

// Error implements error.
func (k ErrorKind) Error() string {
	return "trickplay: " + k.String()
}

// Error is the error returned by Extractor operations.
type Error struct {
	// Kind is the failure class
	Kind ErrorKind
	// Op is the step that failed (e.g. "load", "seek", "capture")
	Op string
	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("trickplay: %s: %s", e.Op, e.Kind.String())
	}
	return fmt.Sprintf("trickplay: %s: %s: %v", e.Op, e.Kind.String(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is e's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

var (
	// ErrClosed is returned once the Extractor has been closed. It is a
	// KindCancelled error.
	ErrClosed = &Error{Kind: KindCancelled, Op: "extract", Err: errors.New("extractor closed")}

	// ErrInvalidDimensions wraps rejected target or source dimensions
	ErrInvalidDimensions = errors.New("trickplay: invalid dimensions")
)

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the ErrorKind carried by err, or 0 if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return 0
}
