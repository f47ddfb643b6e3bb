package filesync

import (
	"errors"
	"fmt"
)

var (
	// ErrAPIError indicates the sidecar answered with a failure status.
	ErrAPIError = errors.New("filesync: sidecar request failed")
	// ErrBadResponse indicates a success status whose body was not the
	// expected JSON document.
	ErrBadResponse = errors.New("filesync: unable to parse response from the sidecar, contact support")
	// ErrTimeout indicates the sidecar did not answer within the client
	// timeout.
	ErrTimeout = errors.New("filesync: timed out waiting on sidecar operation")
)

// APIError reports a non-success answer from the sidecar. It unwraps to
// ErrAPIError so callers can classify without losing the status detail.
type APIError struct {
	StatusCode int
	Body       string
	Operation  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("received %d status from the file sidecar for %s", e.StatusCode, e.Operation)
}

func (e *APIError) Unwrap() error { return ErrAPIError }

// UserError is the message worth showing a notebook user, without the
// raw body.
func (e *APIError) UserError() string {
	return fmt.Sprintf("There was an error while doing the %s operation. Contact support with error code %d.", e.Operation, e.StatusCode)
}
