package notesql

import "errors"

// Common errors used throughout the notesql package
var (
	// ErrBadHandle is returned when a connection handle does not start with "@".
	// Connection identity errors
	ErrBadHandle = errors.New("connection handle must begin with '@'")
	// ErrMissingHumanName indicates a connection was constructed without a display name.
	ErrMissingHumanName = errors.New("connection requires a human-assigned name")
	// ErrDuplicateRegistration indicates a handle or name was registered twice.
	ErrDuplicateRegistration = errors.New("handle or name is already registered")
	// ErrConnectionClosed indicates a statement was executed against a closed connection.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrDriverNotLinked indicates the dialect has no database/sql driver in this build.
	// Engine construction errors
	ErrDriverNotLinked = errors.New("no database driver is linked for dialect")
	// ErrSubDialectNotAllowed indicates a "+sub" driver name where a base dialect is required.
	ErrSubDialectNotAllowed = errors.New("sub-dialect names cannot be used here")

	// ErrBadDescriptor indicates a datasource descriptor fragment could not be parsed.
	// Datasource descriptor errors
	ErrBadDescriptor = errors.New("malformed datasource descriptor")
	// ErrMissingRequirement indicates a needed package is absent and autoinstall is off.
	ErrMissingRequirement = errors.New("required package is not installed")
	// ErrUnsafeDatabasePath indicates a sqlite database path resolves outside the temp sandbox.
	ErrUnsafeDatabasePath = errors.New("database path must resolve under /tmp or $TMPDIR")

	// ErrTransactionsNotSupported is returned for cells that open explicit transactions.
	// Dispatch errors
	ErrTransactionsNotSupported = errors.New("does not support transactions")
	// ErrStatement marks statement-level failures that leave the connection healthy.
	ErrStatement = errors.New("statement error")

	// ErrConfigValidation is returned when configuration validation fails
	ErrConfigValidation = errors.New("configuration validation failed")
)
