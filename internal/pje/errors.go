package pje

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a subscription or case does not exist.
var ErrNotFound = errors.New("not found")

// NetworkError covers transport failures, timeouts and unexpected HTTP
// statuses. It is the only error class the fetch client retries.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// CaptchaError reports that the portal served a captcha challenge instead of
// results. It is terminal: the portal keeps serving the challenge until a
// human solves it.
type CaptchaError struct {
	URL string
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha challenge at %s", e.URL)
}

// NotFoundError reports a page the portal says does not exist.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("page not found at %s", e.URL)
}

// ValidationError reports an invalid search parameter before any request is
// made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseError reports HTML that could not be interpreted as a result page.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTerminal reports whether err must not be retried.
func IsTerminal(err error) bool {
	var captcha *CaptchaError
	var notFound *NotFoundError
	var validation *ValidationError
	return errors.As(err, &captcha) || errors.As(err, &notFound) || errors.As(err, &validation)
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var network *NetworkError
	return errors.As(err, &network)
}
