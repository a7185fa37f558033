// Package diag implements the error-kind taxonomy from spec §7: six
// distinct error types, each carrying a human message, the phase that
// produced it, the offending form or path, and an optional cause chain,
// plus the "partial success per file" aggregation policy.
package diag

import (
	"errors"
	"fmt"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/logger"
)

// Kind is one of the six error kinds named in §7.
type Kind string

const (
	KindParse      Kind = "ParseError"
	KindImport     Kind = "ImportError"
	KindMacro      Kind = "MacroError"
	KindValidation Kind = "ValidationError"
	KindTransform  Kind = "TransformError"
	KindCodeGen    Kind = "CodeGenError"
)

// Error is the structured diagnostic required by §7 "User-visible
// failure": phase, offending form, expected/received shape, and an
// optional cause chain.
type Error struct {
	Kind     Kind
	Phase    logger.Phase
	Message  string
	Path     string      // set for ImportError; "" otherwise
	Form     *ast.SExpr  // set when the failure is attributable to one form
	Expected string      // expected shape, when applicable
	Received string      // received shape, when applicable
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]: %s", e.Kind, e.Phase, e.Message)
	if e.Expected != "" || e.Received != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Received)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, phase logger.Phase, message string) *Error {
	return &Error{Kind: kind, Phase: phase, Message: message}
}

func (e *Error) WithForm(form ast.SExpr) *Error {
	e.Form = &form
	return e
}

func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) WithShapes(expected, received string) *Error {
	e.Expected = expected
	e.Received = received
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// MultiError aggregates per-form failures within a single phase, per §7
// "Propagation policy": if at least one top-level form succeeds, the file
// is reported as partially successful with a count of failures and the
// first three detailed errors.
type MultiError struct {
	Phase    logger.Phase
	Errors   []*Error
	Succeeded int
	Attempted int
}

func (m *MultiError) Add(err *Error) {
	m.Errors = append(m.Errors, err)
}

// Fatal reports whether zero top-level forms succeeded, in which case the
// phase must fail fatally rather than report partial success.
func (m *MultiError) Fatal() bool {
	return m.Attempted > 0 && m.Succeeded == 0
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return ""
	}
	shown := m.Errors
	if len(shown) > 3 {
		shown = shown[:3]
	}
	msg := fmt.Sprintf("%s: %d/%d forms failed", m.Phase, len(m.Errors), m.Attempted)
	for _, e := range shown {
		msg += "\n  - " + e.Error()
	}
	if len(m.Errors) > len(shown) {
		msg += fmt.Sprintf("\n  ... and %d more", len(m.Errors)-len(shown))
	}
	return msg
}

func (m *MultiError) Unwrap() []error {
	errs := make([]error, len(m.Errors))
	for i, e := range m.Errors {
		errs[i] = e
	}
	return errs
}

// AsDiagError unwraps err (which may be wrapped via fmt.Errorf("%w", ...))
// down to its innermost *Error, or returns nil if err is not a diag error.
func AsDiagError(err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return nil
}
