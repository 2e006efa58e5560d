package indexer

import (
	"errors"
	"fmt"
)

var (
	ErrLoginRejected    = errors.New("tracker rejected the login")
	ErrStaleSession     = errors.New("session is still stale after logging in again")
	ErrFormNotFound     = errors.New("login form not found")
	ErrCaptchaClearance = errors.New("captcha clearance failed")
	ErrCaptchaRequired  = errors.New("captcha solution required")
	ErrMissingCookie    = errors.New("no cookie configured")
	ErrTestFailed       = errors.New("logged in check failed")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrTrackerError     = errors.New("tracker returned an error page")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNoRatio          = errors.New("definition has no ratio block")
)

// LoginError aborts the operation that needed a session, Message is the text shown by
// the tracker when there is one.
type LoginError struct {
	Site    string
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login to %s: %s: %s", e.Site, e.Err, e.Message)
	}
	return fmt.Sprintf("login to %s: %s", e.Site, e.Err)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// ParseError is a result page that could not be processed as a whole. It is reported with
// the raw page, the query still returns what was extracted before the failure.
type ParseError struct {
	Site string
	URL  string
	// DumpID references the raw page in telemetry.API.StoreLongMessage.
	DumpID string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s results from %s (dump %s): %s", e.Site, e.URL, e.DumpID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
