package schemaregistry

import (
	"errors"
	"fmt"
)

// ErrSchemaNotFound is returned (wrapped) by a Client when the registry has
// no schema for the requested id. Use errors.Is to check for it.
var ErrSchemaNotFound = errors.New("schema not found")

// ErrRegistryUnavailable is returned (wrapped) by a Client when the registry
// cannot be reached or answers with a server error. Use errors.Is to check
// for it.
var ErrRegistryUnavailable = errors.New("schema registry unavailable")

// errCodeSchemaNotFound is the registry protocol's error_code for an unknown
// schema id.
const errCodeSchemaNotFound = 40403

// ResponseError describes a non-success response from the registry. It is
// wrapped together with one of the sentinel errors above, so callers can
// branch with errors.Is and still recover the status line with errors.As.
type ResponseError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// ErrorCode is the registry protocol error code from the response body,
	// or zero when the body carried none.
	ErrorCode int
	// Message is the registry's error message, if any.
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("registry responded %d (error code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("registry responded %d", e.StatusCode)
}
