package media

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a media error.
type ErrorCode int

const (
	CodeAborted ErrorCode = iota + 1
	CodeNetwork
	CodeDecode
	CodeSrcNotSupported
)

func (c ErrorCode) String() string {
	switch c {
	case CodeAborted:
		return "aborted"
	case CodeNetwork:
		return "network error"
	case CodeDecode:
		return "decode error"
	case CodeSrcNotSupported:
		return "source not supported"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is a classified failure to fetch or decode a resource.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("audio load error (%d): %s", int(e.Code), e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrNotAllowed is returned by Play when the playback policy refuses to
	// start output.
	ErrNotAllowed = errors.New("play not allowed: audio output is not running")

	// ErrReleased is returned by operations on a released element.
	ErrReleased = errors.New("media element has been released")
)

func newError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// asError classifies err, defaulting to code when it is not already a
// media error.
func asError(err error, code ErrorCode) *Error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	return newError(code, "", err)
}
