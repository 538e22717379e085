package schemaparse

import (
	"fmt"

	"github.com/hamba/avro/v2"
)

// AvroParser decodes Avro schema JSON. The record's namespace plays the role
// of the package; Avro has no separate namespace option, so the fallback is
// always empty. A top-level union contributes every record branch, in
// declaration order, which is how multi-type subjects are registered.
type AvroParser struct{}

// Format implements Parser.
func (AvroParser) Format() Format { return FormatAvro }

// Parse implements Parser.
func (AvroParser) Parse(raw []byte) (*Descriptor, error) {
	schema, err := avro.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing avro schema: %v", ErrMalformedSchema, err)
	}

	switch schema := schema.(type) {
	case *avro.RecordSchema:
		return &Descriptor{
			Package:   schema.Namespace(),
			TypeNames: []string{schema.Name()},
		}, nil
	case *avro.UnionSchema:
		d := &Descriptor{}
		for _, branch := range schema.Types() {
			record, ok := branch.(*avro.RecordSchema)
			if !ok {
				continue
			}
			if d.Package == "" {
				d.Package = record.Namespace()
			}
			d.TypeNames = append(d.TypeNames, record.Name())
		}
		return d, nil
	default:
		// Valid schema (primitive, array, map, enum, ...) that declares no
		// record types; naming degrades to empty segments downstream.
		return &Descriptor{}, nil
	}
}
