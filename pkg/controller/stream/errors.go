package stream

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies control and supervisor failures so callers can tell
// "nothing to do" apart from "something went wrong".
type Kind string

const (
	KindUnknown             Kind = "Unknown"
	KindConfigMissing       Kind = "ConfigMissing"
	KindFetchFailed         Kind = "FetchFailed"
	KindLaunchFailed        Kind = "LaunchFailed"
	KindProcessUnresponsive Kind = "ProcessUnresponsive"
	KindAlreadyActive       Kind = "AlreadyActive"
	KindNotActive           Kind = "NotActive"
	KindBusy                Kind = "Busy"
)

// Error is the error type returned by the stream package.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

func wrapError(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

var (
	ErrAlreadyActive = &Error{Kind: KindAlreadyActive, Err: errors.New("stream already active")}
	ErrNotActive     = &Error{Kind: KindNotActive, Err: errors.New("nothing running")}
	ErrBusy          = &Error{Kind: KindBusy, Err: errors.New("another start/stop is in progress")}
)
