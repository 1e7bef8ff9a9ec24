package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
	"github.com/glimte/orderflow/orders"
	"github.com/glimte/orderflow/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSNS struct{}

func (nopSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return &sns.PublishOutput{}, nil
}

func decodeBody(t *testing.T, resp contracts.Response) contracts.ResponseBody {
	t.Helper()
	var body contracts.ResponseBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return body
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "orders")
	assert.Error(t, err)

	_, err = NewClient(messaging.NewMemoryBus(), "")
	assert.Error(t, err)
}

func TestClient_NewOrderFlow(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewMemoryBus()

	client, err := NewClient(bus, "orders")
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Subscribe(ctx))

	resp := client.Handle(ctx, &contracts.Request{
		Method:                "POST",
		Resource:              "/orders",
		QueryStringParameters: map[string]string{"customerId": "c1"},
	})

	require.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Requested to create new order", body.Message)
	require.NotNil(t, body.Response)
	require.Len(t, body.Response.Entries, 1)

	published := bus.Published()
	require.Len(t, published, 2)

	assert.Equal(t, contracts.DetailTypeNewOrder, published[0].DetailType)
	assert.Equal(t, body.Response.Entries[0].EventID, published[0].ID)

	created := published[1]
	assert.Equal(t, contracts.SourceNewOrderConsumer, created.Source)
	assert.Equal(t, contracts.DetailTypeCreatedOrder, created.DetailType)
	assert.Equal(t, "c1", created.Detail["customerId"])
	orderID, ok := created.Detail["orderId"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, orderID, float64(orders.MinOrderID))
	assert.LessOrEqual(t, orderID, float64(orders.MaxOrderID))
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing customer id is a 500 by default", func(t *testing.T) {
		bus := messaging.NewMemoryBus()
		client, err := NewClient(bus, "orders")
		require.NoError(t, err)

		resp := client.Handle(ctx, &contracts.Request{Method: "POST", Resource: "/orders"})

		assert.Equal(t, 500, resp.StatusCode)
		assert.Equal(t, "some error happened - customerId is required", decodeBody(t, resp).Message)
		assert.Empty(t, bus.Published())
	})

	t.Run("validation status is configurable", func(t *testing.T) {
		client, err := NewClient(messaging.NewMemoryBus(), "orders", WithValidationStatus(400))
		require.NoError(t, err)

		resp := client.Handle(ctx, &contracts.Request{Method: "POST", Resource: "/orders"})

		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		client, err := NewClient(messaging.NewMemoryBus(), "orders")
		require.NoError(t, err)

		resp := client.Handle(ctx, &contracts.Request{Method: "DELETE", Resource: "/orders"})

		assert.Equal(t, 500, resp.StatusCode)
		assert.Equal(t, "some error happened - Unknown path and method", decodeBody(t, resp).Message)
	})

	t.Run("publish-only bus cannot subscribe", func(t *testing.T) {
		bus := messaging.BusPublisherFunc(func(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
			return nil, errors.New("unavailable")
		})
		client, err := NewClient(bus, "orders")
		require.NoError(t, err)

		assert.ErrorIs(t, client.Subscribe(ctx), ErrNoSubscriber)
		assert.NoError(t, client.Close())
	})
}

func TestClient_PublishRetry(t *testing.T) {
	calls := 0
	bus := messaging.BusPublisherFunc(func(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("throttled")
		}
		return &contracts.PublishAck{Entries: []contracts.PublishResult{{EventID: "evt-1"}}}, nil
	})

	client, err := NewClient(bus, "orders", WithPublishRetry(2, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)

	resp := client.Handle(context.Background(), &contracts.Request{
		Method:         "PUT",
		Resource:       "/orders/{orderId}",
		PathParameters: map[string]string{"orderId": "42"},
	})

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestClient_SchemaValidation(t *testing.T) {
	registry, err := schema.NewBuiltinRegistry()
	require.NoError(t, err)

	bus := messaging.NewMemoryBus()
	client, err := NewClient(bus, "orders", WithDetailValidator(registry))
	require.NoError(t, err)

	_, err = client.Publish(context.Background(), &contracts.Envelope{
		Source:     contracts.SourceProducer,
		DetailType: contracts.DetailTypeNewOrder,
		Detail:     contracts.Detail{"customerId": 7},
	})

	assert.ErrorIs(t, err, contracts.ErrValidation)
	assert.Empty(t, bus.Published())
}

func TestClient_Rules(t *testing.T) {
	t.Run("consumer only", func(t *testing.T) {
		client, err := NewClient(messaging.NewMemoryBus(), "orders")
		require.NoError(t, err)

		rules := client.Dispatcher().Rules()
		require.Len(t, rules, 1)
		assert.Equal(t, orders.RuleNewOrderConsumer, rules[0].Name)
	})

	t.Run("with wait notifier", func(t *testing.T) {
		notifier := orders.NewWaitNotifier(nopSNS{}, "arn:aws:sns:eu-west-1:123456789012:wait")
		client, err := NewClient(messaging.NewMemoryBus(), "orders", WithWaitNotifier(notifier))
		require.NoError(t, err)

		var names []string
		for _, r := range client.Dispatcher().Rules() {
			names = append(names, r.Name)
		}
		assert.ElementsMatch(t, []string{orders.RuleNewOrderConsumer, orders.RuleWaitNotifier}, names)
	})
}
