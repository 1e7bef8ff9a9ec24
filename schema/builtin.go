package schema

import (
	"embed"
	"fmt"

	"github.com/glimte/orderflow/contracts"
)

//go:embed builtin/*.json
var builtinFS embed.FS

type builtinSchema struct {
	source     string
	detailType string
	version    string
	kind       Kind
	file       string
	eventRef   string
}

var builtinSchemas = []builtinSchema{
	{contracts.SourceProducer, contracts.DetailTypeNewOrder, "1.0.0", KindJSONSchemaDraft4, "builtin/new_order.json", ""},
	{contracts.SourceProducer, contracts.DetailTypeUpdateOrder, "1.0.0", KindJSONSchemaDraft4, "builtin/update_order.json", ""},
	{contracts.SourceNewOrderConsumer, contracts.DetailTypeCreatedOrder, "1.0.0", KindJSONSchemaDraft4, "builtin/created_order.json", ""},
	{contracts.SourceCalculator, contracts.DetailTypeMyEvent, "1.0.0", KindOpenAPI3, "builtin/my_event.json", "MyEvent"},
}

// RegisterBuiltins adds the order event schemas to r
func RegisterBuiltins(r *Registry) error {
	for _, b := range builtinSchemas {
		content, err := builtinFS.ReadFile(b.file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", b.file, err)
		}

		s, err := Compile(b.kind, string(content), b.eventRef)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", b.file, err)
		}

		if err := r.Register(b.source, b.detailType, b.version, s); err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry creates a registry holding the order event schemas
func NewBuiltinRegistry(options ...RegistryOption) (*Registry, error) {
	r := NewRegistry(options...)
	if err := RegisterBuiltins(r); err != nil {
		return nil, err
	}
	return r, nil
}
