package serde

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hamba/avro/v2"
	"google.golang.org/protobuf/proto"

	"github.com/typeresolve/typeresolve/schemaparse"
	"github.com/typeresolve/typeresolve/schemaregistry"
	"github.com/typeresolve/typeresolve/typename"
)

// ProtoDeserializer decodes protobuf-enveloped messages into generated
// message types registered in a TypeMap.
type ProtoDeserializer struct {
	resolver typename.NameResolver
	types    *TypeMap
}

// NewProtoDeserializer returns a ProtoDeserializer that picks target types
// by resolving schema ids through resolver.
func NewProtoDeserializer(resolver typename.NameResolver, types *TypeMap) *ProtoDeserializer {
	return &ProtoDeserializer{resolver: resolver, types: types}
}

// Deserialize decodes one enveloped message. Only the default message-index
// list [0] is accepted: name resolution names the first top-level type, so
// that is the only declaration this path can pick a registered type for.
// Envelopes selecting any other declaration fail with ErrUnsupportedIndexes
// and need DynamicDeserializer.
func (d *ProtoDeserializer) Deserialize(ctx context.Context, data []byte) (proto.Message, error) {
	env, err := ParseProtobufEnvelope(data)
	if err != nil {
		return nil, err
	}
	if !isDefaultIndexes(env.Indexes) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedIndexes, env.Indexes)
	}

	name, err := d.resolver.Resolve(ctx, env.SchemaID)
	if err != nil {
		return nil, err
	}
	msg, err := d.types.NewMessage(name)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("unmarshaling %s payload for schema %d: %w", name, env.SchemaID, err)
	}
	return msg, nil
}

// JSONDeserializer decodes JSON-enveloped documents into types registered in
// a TypeMap.
type JSONDeserializer struct {
	resolver typename.NameResolver
	types    *TypeMap
}

// NewJSONDeserializer returns a JSONDeserializer that picks target types by
// resolving schema ids through resolver.
func NewJSONDeserializer(resolver typename.NameResolver, types *TypeMap) *JSONDeserializer {
	return &JSONDeserializer{resolver: resolver, types: types}
}

// Deserialize decodes one enveloped document into a pointer to a fresh value
// of the registered type.
func (d *JSONDeserializer) Deserialize(ctx context.Context, data []byte) (interface{}, error) {
	id, payload, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	name, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := d.types.NewValue(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("unmarshaling %s payload for schema %d: %w", name, id, err)
	}
	return v, nil
}

// AvroDeserializer decodes Avro-enveloped messages into types registered in
// a TypeMap. Unlike the protobuf and JSON paths it needs the writer schema
// itself to decode payloads, so it talks to the registry directly instead of
// going through a name resolver; target types are still picked by the same
// naming policy Resolve applies.
type AvroDeserializer struct {
	client  schemaregistry.Client
	types   *TypeMap
	subject string
}

// NewAvroDeserializer returns an AvroDeserializer fetching writer schemas
// with client.
func NewAvroDeserializer(client schemaregistry.Client, types *TypeMap, opts ...Option) *AvroDeserializer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &AvroDeserializer{client: client, types: types, subject: o.subject}
}

// Deserialize decodes one enveloped message into a pointer to a fresh value
// of the registered type.
func (d *AvroDeserializer) Deserialize(ctx context.Context, data []byte) (interface{}, error) {
	id, payload, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	schema, err := d.client.SchemaByID(ctx, id, d.subject)
	if err != nil {
		return nil, err
	}
	if schema.Type != schemaregistry.TypeAvro {
		return nil, fmt.Errorf("schema %d is %s, not %s", id, schema.Type, schemaregistry.TypeAvro)
	}

	descriptor, err := schemaparse.AvroParser{}.Parse([]byte(schema.Schema))
	if err != nil {
		return nil, err
	}
	writer, err := avro.Parse(schema.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing avro schema %d: %v", schemaparse.ErrMalformedSchema, id, err)
	}

	v, err := d.types.NewValue(typename.TypeName(descriptor))
	if err != nil {
		return nil, err
	}
	if err := avro.Unmarshal(writer, payload, v); err != nil {
		return nil, fmt.Errorf("unmarshaling avro payload for schema %d: %w", id, err)
	}
	return v, nil
}
