package schemaexport

import "errors"

var (
	// ErrNilIntrospector indicates BuildTbls was handed a nil introspector.
	ErrNilIntrospector = errors.New("schemaexport: introspector is nil")
	// ErrNilSchema indicates a writer was handed a nil schema document.
	ErrNilSchema = errors.New("schemaexport: schema is nil")
)
