// Package schemaregistry provides a client for fetching schemas from a
// Confluent-protocol schema registry by numeric id, along with a read-through
// caching decorator, configuration loading with hot reload, and Prometheus
// instrumentation.
//
// The registry itself (storage, versioning, compatibility checking) is an
// external service. This package only consumes its fetch-by-id capability.
package schemaregistry

import "context"

// SchemaType identifies the format of a registered schema. The values are
// the schemaType names of the registry wire protocol. Responses that omit
// schemaType are Avro; that is the registry's legacy contract.
type SchemaType string

// The schema types the registry protocol defines.
const (
	TypeAvro       SchemaType = "AVRO"
	TypeProtobuf   SchemaType = "PROTOBUF"
	TypeJSONSchema SchemaType = "JSON"
)

// Reference names another registered schema that a schema depends on.
type Reference struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Version int    `json:"version"`
}

// Schema is one registered schema as returned by the registry: the exact
// stored description string and its format tag. A schema id is immutable;
// the registry returns the same content for the same id forever.
type Schema struct {
	ID         int         `json:"id"`
	Type       SchemaType  `json:"schemaType"`
	Schema     string      `json:"schema"`
	References []Reference `json:"references,omitempty"`
}

// Client fetches schemas from a schema registry.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// SchemaByID returns the schema registered under id. subject, when
	// non-empty, is forwarded to the registry as a lookup hint identifying
	// the calling pipeline's subject; it is never interpreted locally.
	//
	// SchemaByID returns an error wrapping ErrSchemaNotFound when the id is
	// unknown and ErrRegistryUnavailable when the registry cannot be
	// reached. It does not retry.
	SchemaByID(ctx context.Context, id int, subject string) (Schema, error)
}

// SchemaStore is a persistent schema cache consulted by CachingClient before
// the network and written back to after successful fetches. Implementations
// live in the schemacache package.
type SchemaStore interface {
	// GetSchema returns the stored schema for id, reporting whether one is
	// stored.
	GetSchema(ctx context.Context, id int) (Schema, bool, error)

	// PutSchema stores a schema under its id. Storing the same id twice is
	// idempotent: registry content is immutable per id.
	PutSchema(ctx context.Context, schema Schema) error
}
