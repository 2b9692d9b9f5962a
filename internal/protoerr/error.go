// Package protoerr is the error taxonomy shared by every ra-utils package:
// a wrapping Error carrying a small fixed set of kinds, so callers can
// errors.Is against a kind instead of string-matching messages.
package protoerr

import "fmt"

// Kind classifies an error the way the core design groups failures: by
// where they originate, not by which package raised them.
type Kind int

const (
	// KindTransport covers serial open/I/O failures, timeouts and (should
	// never happen) short reads.
	KindTransport Kind = iota
	// KindFraming covers bad magic/markers, length bounds and checksum/CRC
	// mismatches.
	KindFraming
	// KindProtocol covers a non-OK status byte, an unexpected command byte
	// or an unsupported length.
	KindProtocol
	// KindResource covers GPIO line acquisition failure or a missing line
	// name.
	KindResource
	// KindInput covers oversized files, misaligned file sizes, malformed
	// YAML and UTF-8 decoding issues.
	KindInput
	// KindState covers an operation invoked while the engine is in the
	// wrong state.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindResource:
		return "resource"
	case KindInput:
		return "input"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every package in this module returns.
// Command and Status are optional annotations used by the RA/CB protocol
// layers to name the command and, if any, the raw MCU status code that
// failed - per the propagation policy that every Framing/Protocol error
// surfaces with both.
type Error struct {
	Kind    Kind
	Command string
	Status  string
	msg     string
	err     error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Command != "" {
		s += " " + e.Command
	}
	if e.msg != "" {
		s += ": " + e.msg
	}
	if e.Status != "" {
		s += " (status " + e.Status + ")"
	}
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is makes errors.Is(err, protoerr.Sentinel(kind)) work: e matches a
// target *Error of the same Kind that carries no message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.msg == "" && t.err == nil
}

// Sentinel returns a bare *Error usable with errors.Is to test a failure's
// Kind, e.g. errors.Is(err, protoerr.Sentinel(protoerr.KindTransport)).
func Sentinel(k Kind) *Error {
	return &Error{Kind: k}
}

// New builds an Error with a message and no wrapped cause.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, msg: msg}
}

// Newf builds an Error with a formatted message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an existing error. Returns nil if
// err is nil.
func Wrap(k Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, msg: msg, err: err}
}

// WithCommand annotates the error with the protocol command name that was
// being attempted.
func (e *Error) WithCommand(cmd string) *Error {
	e.Command = cmd
	return e
}

// WithStatus annotates the error with the raw MCU status mnemonic.
func (e *Error) WithStatus(status string) *Error {
	e.Status = status
	return e
}
