// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a SessionError per the fail-fast error model: every
// protocol-level anomaly is FATAL, INVALID_STATE flags programmer misuse
// of the state machine, and REQUEST_DENIED exists for symmetry with the
// post-handshake authentication layer even though this core never raises
// it.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindRequestDenied
	KindInvalidState
)

func (k ErrorKind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRequestDenied:
		return "request_denied"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// SessionError is the diagnostic value stored on a Session the moment it
// transitions to StateError. Message is the spec-mandated human-readable
// string; Cause, when present, is the underlying error (I/O, parse,
// crypto) wrapped with errors.WithStack. Unwrap returns it, so the
// standard errors.Is / errors.As see through a SessionError.
type SessionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SessionError) Unwrap() error { return e.Cause }

func fatalf(format string, args ...interface{}) *SessionError {
	return &SessionError{Kind: KindFatal, Message: fmt.Sprintf(format, args...)}
}

func wrapFatal(cause error, message string) *SessionError {
	return &SessionError{Kind: KindFatal, Message: message, Cause: errors.WithStack(cause)}
}

func invalidStatef(format string, args ...interface{}) *SessionError {
	return &SessionError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// UnexpectedMessageError results when the SSH message that was received
// didn't match the one the state machine was waiting for.
type UnexpectedMessageError struct {
	Expected, Got uint8
}

func (u UnexpectedMessageError) Error() string {
	return fmt.Sprintf("ssh: unexpected message type %d (expected %d)", u.Got, u.Expected)
}

// ParseError results from a malformed SSH message.
type ParseError struct {
	MsgType uint8
}

func (p ParseError) Error() string {
	return fmt.Sprintf("ssh: parse error in message type %d", p.MsgType)
}
