package schemaparse

import (
	"context"
	"fmt"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// sourceFileName is the synthetic path under which registry schema text is
// compiled. Registry schemas are single files with no path of their own.
const sourceFileName = "schema.proto"

// ProtobufSourceParser decodes schemas registered as .proto source text, the
// registration form produced by source-based serializers. The source is
// compiled in memory; the standard well-known imports are resolvable, any
// other import fails the parse.
type ProtobufSourceParser struct{}

// Format implements Parser.
func (ProtobufSourceParser) Format() Format { return FormatProtobuf }

// Parse implements Parser.
func (ProtobufSourceParser) Parse(raw []byte) (*Descriptor, error) {
	file, err := compileSource(raw)
	if err != nil {
		return nil, err
	}

	opts, _ := file.Options().(*descriptorpb.FileOptions)
	d := &Descriptor{
		Package:         string(file.Package()),
		NamespaceOption: opts.GetCsharpNamespace(),
	}
	msgs := file.Messages()
	for i, length := 0, msgs.Len(); i < length; i++ {
		d.TypeNames = append(d.TypeNames, string(msgs.Get(i).Name()))
	}
	return d, nil
}

// compileSource compiles .proto source text into a file descriptor.
func compileSource(raw []byte) (protoreflect.FileDescriptor, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{
				sourceFileName: string(raw),
			}),
		}),
	}
	files, err := compiler.Compile(context.Background(), sourceFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling schema source: %v", ErrMalformedSchema, err)
	}
	return files[0], nil
}
