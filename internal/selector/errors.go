package selector

import (
	"errors"
	"fmt"
)

var (
	ErrSelectorNotFound  = errors.New("selector matched nothing")
	ErrNoCaseMatched     = errors.New("no case matched")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrUnknownFilter     = errors.New("unknown filter")
	ErrFilterArgs        = errors.New("invalid filter arguments")
)

// Error is scoped to a single field, the caller skips the row it belongs to.
type Error struct {
	Selector string
	Filter   string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Filter != "":
		return fmt.Sprintf("filter %s: %s", e.Filter, e.Err)
	case e.Selector != "":
		return fmt.Sprintf("selector %q: %s", e.Selector, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
