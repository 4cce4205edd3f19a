package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRejected means the portal did not show its logged-in page after
	// submitting the login form.
	ErrLoginRejected = errors.New("login rejected")

	// ErrNavigationUnavailable means the requested page cannot be reached from
	// the current session, usually because it is not logged in.
	ErrNavigationUnavailable = errors.New("navigation unavailable")

	// ErrExtractionFailed means the page did not have the expected structure.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrSessionClosed is returned when logging in with a closed session
	ErrSessionClosed = errors.New("session closed")
)

// TransportError wraps a failure of the browser itself (timeouts, crashed
// tab, script exceptions). These are not recoverable; the session should be
// closed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// transport wraps err in a TransportError unless it already is one
func transport(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func extractionFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExtractionFailed, fmt.Sprintf(format, args...))
}
