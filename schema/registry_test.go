package schema

import (
	"testing"

	"github.com/glimte/orderflow/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, content string) Schema {
	t.Helper()
	s, err := CompileJSONSchema(content)
	require.NoError(t, err)
	return s
}

func TestRegistry(t *testing.T) {
	v1 := `{"type": "object", "required": ["a"]}`
	v2 := `{"type": "object", "required": ["a", "b"]}`

	t.Run("Lookup picks the highest matching version", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("src", "T", "2.0.0", mustCompile(t, v2)))
		require.NoError(t, r.Register("src", "T", "1.0.0", mustCompile(t, v1)))
		require.NoError(t, r.Register("src", "T", "1.2.0", mustCompile(t, v1)))

		_, version, err := r.Lookup("src", "T", "")
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", version.String())

		_, version, err = r.Lookup("src", "T", "~1")
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", version.String())

		_, _, err = r.Lookup("src", "T", ">= 3")
		assert.ErrorIs(t, err, ErrSchemaNotFound)

		assert.Equal(t, []string{"1.0.0", "1.2.0", "2.0.0"}, r.Versions("src", "T"))
	})

	t.Run("Register rejects bad input", func(t *testing.T) {
		r := NewRegistry()
		s := mustCompile(t, v1)

		assert.Error(t, r.Register("", "T", "1.0.0", s))
		assert.Error(t, r.Register("src", "T", "1.0.0", nil))
		assert.Error(t, r.Register("src", "T", "not-a-version", s))

		require.NoError(t, r.Register("src", "T", "1", s))
		assert.ErrorIs(t, r.Register("src", "T", "1.0.0", s), ErrVersionExists)
	})

	t.Run("Replace supersedes an existing version", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("src", "T", "1.0.0", mustCompile(t, v1)))
		require.NoError(t, r.Replace("src", "T", "1", mustCompile(t, v2)))
		require.NoError(t, r.Replace("src", "T", "1.1.0", mustCompile(t, v1)))

		assert.Equal(t, []string{"1.0.0", "1.1.0"}, r.Versions("src", "T"))
		assert.Error(t, r.ValidateVersion("src", "T", "~1.0", contracts.Detail{"a": 1}))
	})

	t.Run("Lookup rejects bad constraints", func(t *testing.T) {
		_, _, err := NewRegistry().Lookup("src", "T", "abc")
		assert.Error(t, err)
	})

	t.Run("Validate uses the latest version", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("src", "T", "1.0.0", mustCompile(t, v1)))
		require.NoError(t, r.Register("src", "T", "2.0.0", mustCompile(t, v2)))

		err := r.Validate("src", "T", contracts.Detail{"a": 1})
		assert.ErrorIs(t, err, contracts.ErrValidation)
		assert.Contains(t, err.Error(), "src/T schema 2.0.0")

		assert.NoError(t, r.ValidateVersion("src", "T", "^1", contracts.Detail{"a": 1}))
		assert.NoError(t, r.Validate("src", "T", contracts.Detail{"a": 1, "b": 2}))
	})

	t.Run("unknown pairs pass unless strict", func(t *testing.T) {
		assert.NoError(t, NewRegistry().Validate("src", "T", contracts.Detail{}))

		err := NewRegistry(WithStrictMode(true)).Validate("src", "T", contracts.Detail{})
		assert.ErrorIs(t, err, contracts.ErrValidation)
		assert.Contains(t, err.Error(), "schema not found")
	})
}

func TestBuiltinRegistry(t *testing.T) {
	r, err := NewBuiltinRegistry(WithStrictMode(true))
	require.NoError(t, err)

	tests := []struct {
		name       string
		source     string
		detailType string
		detail     contracts.Detail
		valid      bool
	}{
		{"new order", contracts.SourceProducer, contracts.DetailTypeNewOrder, contracts.Detail{"customerId": "c1"}, true},
		{"new order without customer", contracts.SourceProducer, contracts.DetailTypeNewOrder, contracts.Detail{}, false},
		{"new order empty customer", contracts.SourceProducer, contracts.DetailTypeNewOrder, contracts.Detail{"customerId": ""}, false},
		{"update order", contracts.SourceProducer, contracts.DetailTypeUpdateOrder, contracts.Detail{"orderId": "1", "status": "Complete"}, true},
		{"update order bad status", contracts.SourceProducer, contracts.DetailTypeUpdateOrder, contracts.Detail{"orderId": "1", "status": "Open"}, false},
		{"created order", contracts.SourceNewOrderConsumer, contracts.DetailTypeCreatedOrder, contracts.Detail{"customerId": "c1", "orderId": 123456}, true},
		{"created order id out of range", contracts.SourceNewOrderConsumer, contracts.DetailTypeCreatedOrder, contracts.Detail{"customerId": "c1", "orderId": 42}, false},
		{"my event", contracts.SourceCalculator, contracts.DetailTypeMyEvent, contracts.Detail{"orderItems": []interface{}{}}, true},
		{"my event bad membership", contracts.SourceCalculator, contracts.DetailTypeMyEvent, contracts.Detail{"membershipType": "D"}, false},
		{"unknown pair", "other", "Thing", contracts.Detail{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.source, tt.detailType, tt.detail)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, contracts.ErrValidation)
			}
		})
	}
}
