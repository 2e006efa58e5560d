package definition

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBlock    = errors.New("missing mandatory block")
	ErrInvalidValue    = errors.New("invalid value")
	ErrInvalidSelector = errors.New("invalid selector")
)

// Error is a malformed or inconsistent definition, it is fatal at load time.
type Error struct {
	Site string
	// Where is a dotted path into the document, ex. `search.fields.title`.
	Where string
	Err   error
}

func (e *Error) Error() string {
	site := e.Site
	if site == "" {
		site = "<unknown>"
	}
	if e.Where == "" {
		return fmt.Sprintf("definition %s: %s", site, e.Err)
	}
	return fmt.Sprintf("definition %s: %s: %s", site, e.Where, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
