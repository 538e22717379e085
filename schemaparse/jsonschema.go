package schemaparse

import (
	"encoding/json"
	"fmt"
)

// JSONSchemaParser extracts naming information from JSON Schema documents.
// JSON Schema has no package or namespace concept; the document title, when
// present and non-empty, is the single declared type name.
type JSONSchemaParser struct{}

// Format implements Parser.
func (JSONSchemaParser) Format() Format { return FormatJSONSchema }

// Parse implements Parser.
func (JSONSchemaParser) Parse(raw []byte) (*Descriptor, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding json schema: %v", ErrMalformedSchema, err)
	}
	switch doc := doc.(type) {
	case map[string]interface{}:
		d := &Descriptor{}
		if title, ok := doc["title"].(string); ok && title != "" {
			d.TypeNames = []string{title}
		}
		return d, nil
	case bool:
		// The boolean schemas true and false are valid and declare nothing.
		return &Descriptor{}, nil
	default:
		return nil, fmt.Errorf("%w: json schema must be an object or boolean", ErrMalformedSchema)
	}
}
