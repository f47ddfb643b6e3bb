package connection

import "errors"

// Error definitions
var (
	// ErrNotConnection is returned when a nil or foreign value is registered.
	ErrNotConnection = errors.New("value is not a connection")
	// ErrBootstrapInProgress indicates a deferred entry was re-entered while resolving.
	ErrBootstrapInProgress = errors.New("datasource bootstrap already in progress")
)

// GenericUnknownConnectionMessage is shown when a lookup key has no
// connection, no deferred bootstrapper, and no failure record.
const GenericUnknownConnectionMessage = "Cannot find data connection. If you recently created this connection, please restart the kernel."

// UnknownConnectionError reports a lookup for a datasource this kernel
// session does not know, carrying the most helpful message available
// (a recorded bootstrap failure when one exists).
type UnknownConnectionError struct {
	Message string
}

func (e *UnknownConnectionError) Error() string {
	return e.Message
}
