package serde_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/typeresolve/typeresolve/internal/registrytest"
	"github.com/typeresolve/typeresolve/schemaparse"
	"github.com/typeresolve/typeresolve/schemaregistry"
	"github.com/typeresolve/typeresolve/serde"
)

const dynamicTestSchema = `syntax = "proto3";
package test.package;

message TestMessage {
  string test_string = 1;
}

message Outer {
  message Inner {
    string test_string = 1;
  }
}
`

func newDynamicFixture(t *testing.T, schema schemaregistry.Schema) (*registrytest.Server, *serde.DynamicDeserializer) {
	t.Helper()
	registry := registrytest.New()
	t.Cleanup(registry.Close)
	registry.Register(schema)

	client, err := schemaregistry.NewHTTPClient(registry.URL())
	require.NoError(t, err)
	return registry, serde.NewDynamicDeserializer(client)
}

func stringField(t *testing.T, msg proto.Message) string {
	t.Helper()
	m := msg.ProtoReflect()
	fd := m.Descriptor().Fields().ByName("test_string")
	require.NotNil(t, fd)
	return m.Get(fd).String()
}

func TestDynamicDeserializer_SourceSchema(t *testing.T) {
	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID: 42, Type: schemaregistry.TypeProtobuf, Schema: dynamicTestSchema,
	})

	data, err := serde.EncodeProtobufEnvelope(42, nil, stringValuePayload(t, "hello"))
	require.NoError(t, err)

	msg, err := d.Deserialize(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, protoreflect.FullName("test.package.TestMessage"), msg.ProtoReflect().Descriptor().FullName())
	require.Equal(t, "hello", stringField(t, msg))
}

func TestDynamicDeserializer_NestedIndexes(t *testing.T) {
	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID: 42, Type: schemaregistry.TypeProtobuf, Schema: dynamicTestSchema,
	})

	data, err := serde.EncodeProtobufEnvelope(42, []int{1, 0}, stringValuePayload(t, "nested"))
	require.NoError(t, err)

	msg, err := d.Deserialize(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, protoreflect.FullName("test.package.Outer.Inner"), msg.ProtoReflect().Descriptor().FullName())
	require.Equal(t, "nested", stringField(t, msg))
}

func TestDynamicDeserializer_DescriptorSchema(t *testing.T) {
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("test_message.proto"),
		Package: proto.String("test.package"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("TestMessage"),
			Field: []*descriptorpb.FieldDescriptorProto{{
				Name:   proto.String("test_string"),
				Number: proto.Int32(1),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			}},
		}},
	}
	b, err := proto.Marshal(file)
	require.NoError(t, err)

	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID:     43,
		Type:   schemaregistry.TypeProtobuf,
		Schema: base64.StdEncoding.EncodeToString(b),
	})

	data, err := serde.EncodeProtobufEnvelope(43, nil, stringValuePayload(t, "hello"))
	require.NoError(t, err)

	msg, err := d.Deserialize(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, protoreflect.FullName("test.package.TestMessage"), msg.ProtoReflect().Descriptor().FullName())
	require.Equal(t, "hello", stringField(t, msg))
}

func TestDynamicDeserializer_DeserializeJSON(t *testing.T) {
	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID: 42, Type: schemaregistry.TypeProtobuf, Schema: dynamicTestSchema,
	})

	data, err := serde.EncodeProtobufEnvelope(42, nil, stringValuePayload(t, "hello"))
	require.NoError(t, err)

	b, err := d.DeserializeJSON(context.Background(), data)
	require.NoError(t, err)
	require.JSONEq(t, `{"testString":"hello"}`, string(b))
}

func TestDynamicDeserializer_IndexOutOfRange(t *testing.T) {
	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID: 42, Type: schemaregistry.TypeProtobuf, Schema: dynamicTestSchema,
	})

	data, err := serde.EncodeProtobufEnvelope(42, []int{5}, nil)
	require.NoError(t, err)

	_, err = d.Deserialize(context.Background(), data)
	require.ErrorContains(t, err, "out of range")
}

func TestDynamicDeserializer_WrongFormat(t *testing.T) {
	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID: 5, Type: schemaregistry.TypeAvro, Schema: testAvroSchema,
	})

	data, err := serde.EncodeProtobufEnvelope(5, nil, nil)
	require.NoError(t, err)

	_, err = d.Deserialize(context.Background(), data)
	require.ErrorContains(t, err, "not PROTOBUF")
}

func TestDynamicDeserializer_MalformedSchema(t *testing.T) {
	_, d := newDynamicFixture(t, schemaregistry.Schema{
		ID: 9, Type: schemaregistry.TypeProtobuf, Schema: "garbage",
	})

	data, err := serde.EncodeProtobufEnvelope(9, nil, nil)
	require.NoError(t, err)

	_, err = d.Deserialize(context.Background(), data)
	require.ErrorIs(t, err, schemaparse.ErrMalformedSchema)
}

func TestDynamicDeserializer_SubjectHint(t *testing.T) {
	registry := registrytest.New()
	defer registry.Close()
	registry.Register(schemaregistry.Schema{
		ID: 42, Type: schemaregistry.TypeProtobuf, Schema: dynamicTestSchema,
	})

	client, err := schemaregistry.NewHTTPClient(registry.URL())
	require.NoError(t, err)
	d := serde.NewDynamicDeserializer(client, serde.WithSubject("test-topic-value"))

	data, err := serde.EncodeProtobufEnvelope(42, nil, stringValuePayload(t, "hello"))
	require.NoError(t, err)

	_, err = d.Deserialize(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, []string{"test-topic-value"}, registry.Subjects())
}
