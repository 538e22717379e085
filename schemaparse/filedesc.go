package schemaparse

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// FileDescriptor decodes a protobuf schema payload into a linked file
// descriptor, accepting both registration forms: .proto source text and a
// serialized (possibly base64-encoded) FileDescriptorProto. Source form is
// tried first, for the same reason FirstOf orders parsers that way.
//
// The descriptor form resolves imports against the process-wide registry, so
// well-known types linked into the binary are importable. The returned error
// wraps ErrMalformedSchema when neither form decodes.
func FileDescriptor(raw []byte) (protoreflect.FileDescriptor, error) {
	if fd, err := compileSource(raw); err == nil {
		return fd, nil
	}
	file, err := ParseFileDescriptorProto(raw)
	if err != nil {
		return nil, err
	}
	if file.GetName() == "" {
		file.Name = proto.String(sourceFileName)
	}
	fd, err := protodesc.NewFile(file, protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("%w: linking file descriptor: %v", ErrMalformedSchema, err)
	}
	return fd, nil
}
