package serde

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/typeresolve/typeresolve/schemaparse"
	"github.com/typeresolve/typeresolve/schemaregistry"
)

// DynamicDeserializer decodes protobuf-enveloped messages without generated
// types: the schema itself supplies the descriptor and the message is built
// dynamically. It accepts both schema registration forms and honors the full
// message-index list, so it decodes the nested declarations the typed path
// rejects.
type DynamicDeserializer struct {
	client  schemaregistry.Client
	subject string
}

// NewDynamicDeserializer returns a DynamicDeserializer fetching schemas with
// client.
func NewDynamicDeserializer(client schemaregistry.Client, opts ...Option) *DynamicDeserializer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &DynamicDeserializer{client: client, subject: o.subject}
}

// Deserialize decodes one enveloped message into a dynamic message backed by
// the schema's descriptor.
func (d *DynamicDeserializer) Deserialize(ctx context.Context, data []byte) (proto.Message, error) {
	env, err := ParseProtobufEnvelope(data)
	if err != nil {
		return nil, err
	}

	schema, err := d.client.SchemaByID(ctx, env.SchemaID, d.subject)
	if err != nil {
		return nil, err
	}
	if schema.Type != schemaregistry.TypeProtobuf {
		return nil, fmt.Errorf("schema %d is %s, not %s", env.SchemaID, schema.Type, schemaregistry.TypeProtobuf)
	}

	fd, err := schemaparse.FileDescriptor([]byte(schema.Schema))
	if err != nil {
		return nil, err
	}
	md, err := messageAtIndexes(fd, env.Indexes)
	if err != nil {
		return nil, fmt.Errorf("schema %d: %w", env.SchemaID, err)
	}

	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("unmarshaling %s payload for schema %d: %w", md.FullName(), env.SchemaID, err)
	}
	return msg, nil
}

// DeserializeJSON decodes one enveloped message and renders it as JSON.
func (d *DynamicDeserializer) DeserializeJSON(ctx context.Context, data []byte) ([]byte, error) {
	msg, err := d.Deserialize(ctx, data)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(msg)
}

// messageAtIndexes walks the message-index path through a file's message
// declarations: the first index selects a top-level message, each subsequent
// index a message declared inside the previous one.
func messageAtIndexes(fd protoreflect.FileDescriptor, indexes []int) (protoreflect.MessageDescriptor, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("empty message index list")
	}
	msgs := fd.Messages()
	var md protoreflect.MessageDescriptor
	for depth, index := range indexes {
		if index < 0 || index >= msgs.Len() {
			return nil, fmt.Errorf("message index %d out of range at depth %d: %d declarations", index, depth, msgs.Len())
		}
		md = msgs.Get(index)
		msgs = md.Messages()
	}
	return md, nil
}
