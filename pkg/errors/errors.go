// Package errors provides the error types used across ropstat.
// Every failure that reaches the command line carries a Kind so callers can
// tell a missing input apart from a malformed summary or a broken tool.
package errors

import (
	"errors"
	"fmt"
)

// =============================================================================
// Base Error Type
// =============================================================================

// Error is the base error type for ropstat errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "aggregate.AggregateFiles")
	Op string

	// Path is the file the error relates to, if any
	Path string

	// Line is the 1-based line number within Path, if any
	Line int

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindInputNotFound
	KindMalformedSummary
	KindExternalTool
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInputNotFound:
		return "input_not_found"
	case KindMalformedSummary:
		return "malformed_summary"
	case KindExternalTool:
		return "external_tool"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		loc := e.Path
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
		}
		if msg != "" {
			msg = loc + ": " + msg
		} else {
			msg = loc
		}
	}
	if e.Op != "" {
		if msg == "" {
			if e.Err != nil {
				return fmt.Sprintf("%s: %v", e.Op, e.Err)
			}
			return e.Op
		}
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// =============================================================================
// Constructors
// =============================================================================

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op, then Message), error, or Location.
func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case Location:
			e.Path = a.Path
			e.Line = a.Line
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// Location pins an error to a file and optional line.
type Location struct {
	Path string
	Line int
}

// At returns a Location for use with E.
func At(path string, line int) Location {
	return Location{Path: path, Line: line}
}

// New creates a new simple error.
func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Err: err}
}

// InputNotFound reports a missing or unreadable input file.
func InputNotFound(op, path string, err error) error {
	return &Error{Kind: KindInputNotFound, Op: op, Path: path, Message: "input not found or unreadable", Err: err}
}

// MalformedSummary reports a summary line whose count cannot be parsed.
func MalformedSummary(op, path string, line int, content string, err error) error {
	return &Error{
		Kind:    KindMalformedSummary,
		Op:      op,
		Path:    path,
		Line:    line,
		Message: fmt.Sprintf("malformed summary line %q", content),
		Err:     err,
	}
}

// =============================================================================
// Error Checkers
// =============================================================================

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInputNotFound checks if the error is a missing-input error.
func IsInputNotFound(err error) bool {
	return GetKind(err) == KindInputNotFound
}

// IsMalformedSummary checks if the error is a summary parse error.
func IsMalformedSummary(err error) bool {
	return GetKind(err) == KindMalformedSummary
}

// IsExternalTool checks if the error came from the gadget finder.
func IsExternalTool(err error) bool {
	return GetKind(err) == KindExternalTool
}

// IsInvalidInput checks if the error is a bad argument or config value.
func IsInvalidInput(err error) bool {
	return GetKind(err) == KindInvalidInput
}

// =============================================================================
// Common Errors
// =============================================================================

var (
	// ErrInvalidConfig is returned for invalid configuration.
	ErrInvalidConfig = &Error{Kind: KindInvalidInput, Message: "invalid configuration"}

	// ErrToolNotInstalled is returned when the gadget finder cannot be run.
	ErrToolNotInstalled = &Error{Kind: KindExternalTool, Message: "gadget finder not installed"}
)
