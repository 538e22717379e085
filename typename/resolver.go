// Package typename derives fully qualified type names from registered
// schemas. Given a numeric schema id, a Resolver fetches the schema from the
// registry, parses it, and applies a fixed naming policy to produce a
// "<namespace>.<typeName>" string that downstream consumers use to pick
// deserialization targets.
package typename

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/typeresolve/typeresolve/schemaparse"
	"github.com/typeresolve/typeresolve/schemaregistry"
)

// ErrUnknownFormat is returned (wrapped) by Resolve when the registry
// reports a schema format the resolver has no parser for.
var ErrUnknownFormat = errors.New("unknown schema format")

// NameResolver resolves schema ids to fully qualified type names.
//
// Implementations must be safe for concurrent use.
type NameResolver interface {
	// Resolve returns the fully qualified type name for the schema
	// registered under id. Resolution is deterministic: the same id always
	// yields the same name.
	//
	// Errors wrap schemaregistry.ErrSchemaNotFound for unknown ids,
	// schemaregistry.ErrRegistryUnavailable when the registry cannot be
	// reached, schemaparse.ErrMalformedSchema for undecodable schemas, and
	// ErrUnknownFormat for formats without a parser.
	Resolve(ctx context.Context, id int) (string, error)
}

// Resolver is the NameResolver that talks to a schema registry. Create one
// with New.
type Resolver struct {
	client  schemaregistry.Client
	subject string
	parsers map[schemaregistry.SchemaType]schemaparse.Parser
	logger  zerolog.Logger
	metrics *schemaregistry.Metrics
}

var _ NameResolver = (*Resolver)(nil)

// Option configures a Resolver.
type Option func(*Resolver)

// WithSubject sets the subject hint forwarded to the registry with every
// fetch. The hint helps multi-tenant registries locate the schema; it never
// influences the resolved name.
func WithSubject(subject string) Option {
	return func(r *Resolver) { r.subject = subject }
}

// WithParser registers a parser for a schema format, replacing the default
// one. Registering a format the resolver does not know extends it.
func WithParser(format schemaregistry.SchemaType, parser schemaparse.Parser) Option {
	return func(r *Resolver) { r.parsers[format] = parser }
}

// WithLogger sets the logger for resolution events. The default discards
// everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics attaches a metrics collector for resolution counts.
func WithMetrics(metrics *schemaregistry.Metrics) Option {
	return func(r *Resolver) { r.metrics = metrics }
}

// New returns a Resolver that fetches schemas with client. By default it
// parses protobuf schemas in both their source and serialized descriptor
// forms, Avro schemas, and JSON Schema documents.
func New(client schemaregistry.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client: client,
		parsers: map[schemaregistry.SchemaType]schemaparse.Parser{
			schemaregistry.TypeProtobuf: schemaparse.FirstOf(
				schemaparse.ProtobufSourceParser{},
				schemaparse.ProtobufParser{},
			),
			schemaregistry.TypeAvro:       schemaparse.AvroParser{},
			schemaregistry.TypeJSONSchema: schemaparse.JSONSchemaParser{},
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements NameResolver.
func (r *Resolver) Resolve(ctx context.Context, id int) (string, error) {
	schema, err := r.client.SchemaByID(ctx, id, r.subject)
	if err != nil {
		r.observe(schema.Type, err)
		return "", fmt.Errorf("resolving type name for schema %d: %w", id, err)
	}

	parser, ok := r.parsers[schema.Type]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownFormat, schema.Type)
		r.observe(schema.Type, err)
		return "", fmt.Errorf("resolving type name for schema %d: %w", id, err)
	}

	descriptor, err := parser.Parse([]byte(schema.Schema))
	if err != nil {
		r.observe(schema.Type, err)
		return "", fmt.Errorf("resolving type name for schema %d: %w", id, err)
	}

	name := TypeName(descriptor)
	r.observe(schema.Type, nil)
	r.logger.Debug().
		Int("schema_id", id).
		Str("schema_type", string(schema.Type)).
		Str("type_name", name).
		Msg("resolved type name")
	return name, nil
}

// TypeName applies the naming policy to a parsed descriptor:
//
//   - the namespace is the declared package, or the namespace declaration
//     option when no package is declared, or empty when neither is present;
//   - the type name is the first top-level type, or empty when the schema
//     declares none;
//   - the result is namespace, a dot, and the type name.
//
// The separating dot is always emitted, even when one or both sides are
// empty. Consumers match on the exact emitted shape, so ".TestMessage",
// "TestPackage." and even a bare "." are correct outputs, not bugs to fix.
func TypeName(descriptor *schemaparse.Descriptor) string {
	namespace := descriptor.Package
	if namespace == "" {
		namespace = descriptor.NamespaceOption
	}
	typeName := ""
	if len(descriptor.TypeNames) > 0 {
		typeName = descriptor.TypeNames[0]
	}
	return namespace + "." + typeName
}

func (r *Resolver) observe(format schemaregistry.SchemaType, err error) {
	if r.metrics == nil {
		return
	}
	label := strings.ToLower(string(format))
	if label == "" {
		label = "unknown"
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, schemaregistry.ErrSchemaNotFound):
		outcome = "not_found"
	case errors.Is(err, schemaregistry.ErrRegistryUnavailable):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	r.metrics.ObserveResolution(label, outcome)
}
