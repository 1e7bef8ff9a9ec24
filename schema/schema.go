package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind identifies a schema document format
type Kind string

// Kinds accepted by the EventBridge Schema Registry
const (
	KindJSONSchemaDraft4 Kind = "JSONSchemaDraft4"
	KindOpenAPI3         Kind = "OpenApi3"
)

// Schema validates a JSON-decoded value
type Schema interface {
	Kind() Kind
	Validate(value interface{}) error
}

// JSONSchema is a compiled JSON Schema document
type JSONSchema struct {
	compiled *jsonschema.Schema
}

// CompileJSONSchema compiles a JSON Schema document. Documents without a
// $schema keyword are treated as draft 4.
func CompileJSONSchema(content string) (*JSONSchema, error) {
	const resource = "detail.json"

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4
	if err := compiler.AddResource(resource, strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &JSONSchema{compiled: compiled}, nil
}

// Kind implements Schema
func (s *JSONSchema) Kind() Kind {
	return KindJSONSchemaDraft4
}

// Validate implements Schema
func (s *JSONSchema) Validate(value interface{}) error {
	return s.compiled.Validate(value)
}

// OpenAPISchema is the component schema an OpenAPI 3 document names as its event
type OpenAPISchema struct {
	eventRef string
	schema   *openapi3.Schema
}

// LoadOpenAPI loads an OpenAPI 3 document and selects the component schema
// named eventRef
func LoadOpenAPI(content, eventRef string) (*OpenAPISchema, error) {
	if eventRef == "" {
		return nil, fmt.Errorf("no eventRef specified for OpenApi3 schema")
	}

	doc, err := openapi3.NewLoader().LoadFromData([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenApi3 schema: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenApi3 schema: %w", err)
	}

	if doc.Components == nil || doc.Components.Schemas == nil {
		return nil, fmt.Errorf("no schemas found under components")
	}

	ref, ok := doc.Components.Schemas[eventRef]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("eventRef %q not found in the schema", eventRef)
	}

	return &OpenAPISchema{eventRef: eventRef, schema: ref.Value}, nil
}

// Kind implements Schema
func (s *OpenAPISchema) Kind() Kind {
	return KindOpenAPI3
}

// EventRef returns the component the schema was selected from
func (s *OpenAPISchema) EventRef() string {
	return s.eventRef
}

// Validate implements Schema
func (s *OpenAPISchema) Validate(value interface{}) error {
	return s.schema.VisitJSON(value, openapi3.MultiErrors())
}

// Compile builds a Schema of the given kind. eventRef is only used by OpenApi3.
func Compile(kind Kind, content, eventRef string) (Schema, error) {
	switch kind {
	case KindJSONSchemaDraft4:
		return CompileJSONSchema(content)
	case KindOpenAPI3:
		return LoadOpenAPI(content, eventRef)
	default:
		return nil, fmt.Errorf("unsupported schema type %q", kind)
	}
}

// normalize round-trips v through JSON so that validators only see the
// types encoding/json produces
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
