package parser

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Parse wraps exactly one of these, so
// callers can branch with errors.Is.
var (
	ErrEmptyInput    = errors.New("empty input")
	ErrSyntax        = errors.New("syntax error")
	ErrUnsupported   = errors.New("unsupported construct")
	ErrDepthExceeded = errors.New("subquery depth exceeded")
)

// Error is a parse failure with position information.
type Error struct {
	Kind    error
	Pos     Position
	Message string
}

func (e *Error) Error() string {
	if !e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at line %d, column %d: %s", e.Kind, e.Pos.Line, e.Pos.Column, e.Message)
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// KindName returns a stable snake_case name for the kind of err, or
// "internal" if err does not come from the parser.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrSyntax):
		return "syntax_error"
	case errors.Is(err, ErrUnsupported):
		return "unsupported_construct"
	case errors.Is(err, ErrDepthExceeded):
		return "depth_exceeded"
	default:
		return "internal"
	}
}

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrUnterminatedString = "unterminated string literal"
	ErrUnterminatedIdent  = "unterminated quoted identifier"
	ErrUnbalancedParens   = "unbalanced parentheses"
	ErrMissingFrom        = "missing FROM clause"
	ErrMissingAlias       = "subquery in FROM must have an alias"
	ErrNotSelect          = "statement must start with SELECT, got %s"
	ErrUnsupportedSetOp   = "set operation %s is not supported"
	ErrUnsupportedWindow  = "window function %s(...) OVER is not supported"
	ErrUnsupportedOver    = "window functions (OVER) are not supported"
	ErrUnsupportedCTE     = "WITH clauses are not supported"
	ErrUnsupportedLateral = "LATERAL subqueries are not supported"
	ErrMultipleStatements = "only one statement is supported"
	ErrMaxDepth           = "subquery nesting exceeds the limit of %d"
)
