// Package serde decodes messages framed with the schema registry wire
// envelope. A deserializer composes the layers below it: the envelope names
// the schema, the schema resolves to a type name, and the type name selects
// the value to unmarshal the payload into. ProtoDeserializer and
// JSONDeserializer decode into types registered in a TypeMap;
// DynamicDeserializer needs no registrations and builds messages straight
// from the schema's descriptor.
package serde

import "errors"

var (
	// ErrUnregisteredType is returned when a resolved type name has no
	// entry in the TypeMap.
	ErrUnregisteredType = errors.New("unregistered type")

	// ErrUnsupportedIndexes is returned by typed protobuf deserialization
	// when the envelope selects anything but the first top-level message.
	// Nested selections need DynamicDeserializer.
	ErrUnsupportedIndexes = errors.New("unsupported message index list")

	// ErrTypeConflict is returned when a name is registered twice with
	// different types.
	ErrTypeConflict = errors.New("conflicting type registration")
)

// Option configures deserializers that fetch schemas from the registry
// themselves.
type Option func(*options)

type options struct {
	subject string
}

// WithSubject sets the subject hint forwarded to the registry with every
// schema fetch.
func WithSubject(subject string) Option {
	return func(o *options) { o.subject = subject }
}
