package tmpl

import (
	"errors"
	"fmt"
)

var (
	ErrUndefinedVariable     = errors.New("undefined variable")
	ErrUnsupportedExpression = errors.New("unsupported expression")
	ErrSyntax                = errors.New("syntax error")
)

// Error is returned by Parse and Execute, nothing is rendered when it occurs.
type Error struct {
	Template string
	// Pos is the byte offset of the action that failed.
	Pos int
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template %q: offset %d: %s", e.Template, e.Pos, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
