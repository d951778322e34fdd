package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a filter failure.
type ErrorKind string

const (
	// Configuration kinds: the manifest asked for something the filter cannot do.
	KindInvalidInputCount     ErrorKind = "invalid_input_count"
	KindRequiredOptionMissing ErrorKind = "required_option_missing"
	KindInvalidOptionType     ErrorKind = "invalid_option_type"

	// Execution kinds: the filter tried and the underlying tool or library failed.
	KindIO               ErrorKind = "io"
	KindExecutableStatus ErrorKind = "executable_status"
	KindCompilation      ErrorKind = "compilation"
)

// ErrUnknownFilter is returned by Registry.Invoke for unregistered names.
var ErrUnknownFilter = errors.New("unknown filter")

// Error is the single error type returned by filters. Library-specific
// causes are carried opaquely in Err.
type Error struct {
	Kind     ErrorKind
	Filter   string // registered name, stamped by the registry
	Option   string // option name for option errors
	Count    int    // input count for KindInvalidInputCount
	ExitCode int    // exit status for KindExecutableStatus (-1 when killed)
	Stderr   string // trailing stderr output of a failed executable
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Filter != "" {
		fmt.Fprintf(&b, "filter %s: ", e.Filter)
	}
	switch e.Kind {
	case KindInvalidInputCount:
		fmt.Fprintf(&b, "invalid input count: expected 1, got %d", e.Count)
	case KindRequiredOptionMissing:
		fmt.Fprintf(&b, "required option %q missing", e.Option)
	case KindInvalidOptionType:
		fmt.Fprintf(&b, "invalid type for option %q", e.Option)
	case KindExecutableStatus:
		fmt.Fprintf(&b, "executable exited with status %d", e.ExitCode)
	case KindCompilation:
		b.WriteString("compilation failed")
	case KindIO:
		b.WriteString("i/o failure")
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", e.Stderr)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether the failure points at manifest
// misconfiguration rather than a broken asset or tool.
func (e *Error) IsConfigError() bool {
	switch e.Kind {
	case KindInvalidInputCount, KindRequiredOptionMissing, KindInvalidOptionType:
		return true
	default:
		return false
	}
}

// KindOf extracts the filter error kind from an error chain.
func KindOf(err error) (ErrorKind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

func invalidInputCount(n int) *Error {
	return &Error{Kind: KindInvalidInputCount, Count: n}
}

func ioError(op string, err error) *Error {
	return &Error{Kind: KindIO, Err: fmt.Errorf("%s: %w", op, err)}
}
