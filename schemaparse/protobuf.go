package schemaparse

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ProtobufParser decodes schemas stored as serialized FileDescriptorProto
// messages, the registration form produced by descriptor-based serializers.
// Registry payloads travel as strings, so the descriptor bytes are normally
// base64 encoded; raw descriptor bytes are accepted as well.
//
// The namespace option is the file's csharp_namespace option, which is what
// descriptor-registering pipelines declare when their schemas have no
// protobuf package.
type ProtobufParser struct{}

// Format implements Parser.
func (ProtobufParser) Format() Format { return FormatProtobuf }

// Parse implements Parser.
func (ProtobufParser) Parse(raw []byte) (*Descriptor, error) {
	file, err := ParseFileDescriptorProto(raw)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		Package:         file.GetPackage(),
		NamespaceOption: file.GetOptions().GetCsharpNamespace(),
	}
	for _, m := range file.GetMessageType() {
		d.TypeNames = append(d.TypeNames, m.GetName())
	}
	return d, nil
}

// ParseFileDescriptorProto decodes raw into a FileDescriptorProto. The
// base64-encoded form is tried first; when raw is not base64 text, or the
// decoded bytes are not a descriptor, raw itself is decoded as the
// serialized descriptor.
//
// The returned error wraps ErrMalformedSchema when neither form decodes.
func ParseFileDescriptorProto(raw []byte) (*descriptorpb.FileDescriptorProto, error) {
	if decoded, err := base64.StdEncoding.DecodeString(string(raw)); err == nil {
		var file descriptorpb.FileDescriptorProto
		if err := proto.Unmarshal(decoded, &file); err == nil {
			return &file, nil
		}
	}
	var file descriptorpb.FileDescriptorProto
	if err := proto.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: decoding file descriptor: %v", ErrMalformedSchema, err)
	}
	return &file, nil
}
