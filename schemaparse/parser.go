// Package schemaparse decodes raw schema registry payloads into the naming
// information needed to resolve message type names: the declared package, a
// format-specific namespace option, and the top-level type names in
// declaration order.
//
// Each supported schema format has its own Parser implementation. Parsers are
// pure functions of their input bytes: they perform no I/O, retain no state,
// and parsing the same bytes twice yields identical descriptors.
package schemaparse

import (
	"errors"
	"fmt"
)

// Format identifies the schema format a parser understands. The values match
// the schemaType names used by the schema registry wire protocol.
type Format string

// The schema formats known to this package.
const (
	FormatProtobuf   Format = "PROTOBUF"
	FormatAvro       Format = "AVRO"
	FormatJSONSchema Format = "JSON"
)

// ErrMalformedSchema is wrapped by every parser failure: the raw bytes could
// not be decoded as a schema of the format the parser expects.
var ErrMalformedSchema = errors.New("malformed schema")

// Descriptor is a read-only view over one parsed schema. Package is the
// declared package name, empty when the schema declares none.
// NamespaceOption is a format-specific fallback namespace, empty when the
// schema declares no such option or declares it empty. TypeNames holds the
// names of the message (or record) types declared at the top level of the
// schema, in declaration order; it may be empty.
//
// A Descriptor never distinguishes an absent namespace option from an empty
// one: the name-resolution policy treats both identically.
type Descriptor struct {
	Package         string
	NamespaceOption string
	TypeNames       []string
}

// Parser decodes one schema format into a Descriptor.
type Parser interface {
	// Format reports the schema format this parser decodes.
	Format() Format

	// Parse decodes raw into a Descriptor. It returns an error wrapping
	// ErrMalformedSchema when raw is not a valid schema of this format.
	// Parse has no side effects and is safe for concurrent use.
	Parse(raw []byte) (*Descriptor, error)
}

// FirstOf returns a Parser that tries each of the given parsers in order and
// returns the first successful parse. It fails only when every parser fails,
// returning the last error. The combined parser reports the format of the
// first parser; combining parsers of different formats is a caller bug.
//
// The common use is accepting both registration forms of protobuf schemas,
// source form first so that descriptor decoding never runs on schema text:
//
//	schemaparse.FirstOf(schemaparse.ProtobufSourceParser{}, schemaparse.ProtobufParser{})
func FirstOf(parsers ...Parser) Parser {
	return firstOf{parsers: parsers}
}

type firstOf struct {
	parsers []Parser
}

func (f firstOf) Format() Format {
	if len(f.parsers) == 0 {
		return ""
	}
	return f.parsers[0].Format()
}

func (f firstOf) Parse(raw []byte) (*Descriptor, error) {
	var lastErr error
	for _, p := range f.parsers {
		d, err := p.Parse(raw)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no parsers configured", ErrMalformedSchema)
	}
	return nil, lastErr
}
