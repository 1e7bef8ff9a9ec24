package messaging

import (
	"testing"

	"github.com/glimte/orderflow/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule(t *testing.T) {
	newOrder := &contracts.Envelope{
		ID:         "evt-1",
		Source:     contracts.SourceProducer,
		DetailType: contracts.DetailTypeNewOrder,
		Detail:     contracts.Detail{"customerId": "c1", "address": map[string]interface{}{"city": "Oslo"}},
	}

	t.Run("Matches requires source and detail type", func(t *testing.T) {
		rule := Rule{
			Name:        "new-order",
			Sources:     []string{contracts.SourceProducer},
			DetailTypes: []string{contracts.DetailTypeNewOrder},
		}
		assert.True(t, rule.Matches(newOrder))

		other := *newOrder
		other.DetailType = contracts.DetailTypeUpdateOrder
		assert.False(t, rule.Matches(&other))

		other = *newOrder
		other.Source = contracts.SourceNewOrderConsumer
		assert.False(t, rule.Matches(&other))

		assert.False(t, rule.Matches(nil))
	})

	t.Run("empty set matches any value", func(t *testing.T) {
		rule := Rule{Name: "all-new-orders", DetailTypes: []string{contracts.DetailTypeNewOrder}}
		assert.True(t, rule.Matches(newOrder))
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			rule    Rule
			wantErr string
		}{
			{name: "valid", rule: Rule{Name: "r", Sources: []string{"s"}}},
			{name: "missing name", rule: Rule{Sources: []string{"s"}}, wantErr: "name"},
			{name: "matches everything", rule: Rule{Name: "r"}, wantErr: "at least one"},
			{
				name:    "path and input",
				rule:    Rule{Name: "r", Sources: []string{"s"}, InputPath: "$.detail", Input: map[string]interface{}{"a": 1}},
				wantErr: "mutually exclusive",
			},
			{name: "bad path", rule: Rule{Name: "r", Sources: []string{"s"}, InputPath: "detail.x"}, wantErr: "must start with $"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.rule.Validate()
				if tt.wantErr == "" {
					assert.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			})
		}
	})

	t.Run("Project defaults to the detail", func(t *testing.T) {
		input, err := Rule{Name: "r"}.Project(newOrder)
		require.NoError(t, err)
		assert.JSONEq(t, `{"customerId":"c1","address":{"city":"Oslo"}}`, string(input))
	})

	t.Run("Project follows an input path", func(t *testing.T) {
		input, err := Rule{Name: "r", InputPath: "$.detail.customerId"}.Project(newOrder)
		require.NoError(t, err)
		assert.JSONEq(t, `"c1"`, string(input))

		input, err = Rule{Name: "r", InputPath: "$.detail.address.city"}.Project(newOrder)
		require.NoError(t, err)
		assert.JSONEq(t, `"Oslo"`, string(input))

		input, err = Rule{Name: "r", InputPath: "$.source"}.Project(newOrder)
		require.NoError(t, err)
		assert.JSONEq(t, `"com.hello-world.producer"`, string(input))
	})

	t.Run("Project fails on a missing field", func(t *testing.T) {
		_, err := Rule{Name: "r", InputPath: "$.detail.orderId"}.Project(newOrder)
		assert.ErrorContains(t, err, "$.detail.orderId: field not found")

		_, err = Rule{Name: "r", InputPath: "$.detail.customerId.first"}.Project(newOrder)
		assert.ErrorContains(t, err, "field not found")
	})

	t.Run("Project treats path segments as literal keys", func(t *testing.T) {
		env := &contracts.Envelope{
			Source:     contracts.SourceProducer,
			DetailType: contracts.DetailTypeNewOrder,
			Detail:     contracts.Detail{"line*": "l1", "items": []interface{}{"a", "b"}},
		}

		input, err := Rule{Name: "r", InputPath: "$.detail.line*"}.Project(env)
		require.NoError(t, err)
		assert.JSONEq(t, `"l1"`, string(input))

		input, err = Rule{Name: "r", InputPath: "$.detail.items"}.Project(env)
		require.NoError(t, err)
		assert.JSONEq(t, `["a","b"]`, string(input))
	})

	t.Run("Project passes constant input", func(t *testing.T) {
		input, err := Rule{Name: "r", Input: map[string]interface{}{"waitMilliseconds": 2000}}.Project(newOrder)
		require.NoError(t, err)
		assert.JSONEq(t, `{"waitMilliseconds":2000}`, string(input))
	})

	t.Run("Project with $ passes the envelope", func(t *testing.T) {
		input, err := Rule{Name: "r", InputPath: "$"}.Project(newOrder)
		require.NoError(t, err)
		assert.Contains(t, string(input), `"detail-type":"NewOrder"`)
	})

	t.Run("EventPattern omits empty sets", func(t *testing.T) {
		pattern, err := Rule{
			Name:        "r",
			Sources:     []string{contracts.SourceProducer},
			DetailTypes: []string{contracts.DetailTypeNewOrder},
		}.EventPattern()
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":["com.hello-world.producer"],"detail-type":["NewOrder"]}`, pattern)

		pattern, err = Rule{Name: "r", DetailTypes: []string{"A"}}.EventPattern()
		require.NoError(t, err)
		assert.JSONEq(t, `{"detail-type":["A"]}`, pattern)
	})

	t.Run("Bindings expands the cross product", func(t *testing.T) {
		bindings := Rule{Name: "r", Sources: []string{"a", "b"}, DetailTypes: []string{"X", "Y"}}.Bindings()
		assert.Equal(t, []Binding{
			{Source: "a", DetailType: "X"},
			{Source: "a", DetailType: "Y"},
			{Source: "b", DetailType: "X"},
			{Source: "b", DetailType: "Y"},
		}, bindings)

		bindings = Rule{Name: "r", DetailTypes: []string{"X"}}.Bindings()
		assert.Equal(t, []Binding{{DetailType: "X"}}, bindings)
	})
}
