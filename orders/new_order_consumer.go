package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// OrderIDGenerator returns a new order id
type OrderIDGenerator func() int

// RandomOrderID returns a uniformly distributed id in [MinOrderID, MaxOrderID]
func RandomOrderID() int {
	return MinOrderID + rand.IntN(MaxOrderID-MinOrderID+1)
}

// NewOrderConsumer creates orders for NewOrder events and announces them
// with a CreatedOrder event
type NewOrderConsumer struct {
	publisher messaging.Publisher
	factory   *messaging.EnvelopeFactory
	newID     OrderIDGenerator
	logger    *slog.Logger
}

// ConsumerOption configures the NewOrderConsumer
type ConsumerOption func(*NewOrderConsumer)

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *NewOrderConsumer) {
		c.logger = logger
	}
}

// WithOrderIDGenerator replaces the random order id generator
func WithOrderIDGenerator(gen OrderIDGenerator) ConsumerOption {
	return func(c *NewOrderConsumer) {
		c.newID = gen
	}
}

// NewNewOrderConsumer creates a consumer publishing to busName
func NewNewOrderConsumer(publisher messaging.Publisher, busName string, options ...ConsumerOption) *NewOrderConsumer {
	c := &NewOrderConsumer{
		publisher: publisher,
		factory:   messaging.NewEnvelopeFactory(busName),
		newID:     RandomOrderID,
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// CreateOrder generates an order id for the customer and publishes
// CreatedOrder. The customer id arrives validated by the upstream event, so
// it is not checked again.
func (c *NewOrderConsumer) CreateOrder(ctx context.Context, customerID string) (CreatedOrder, *contracts.PublishAck, error) {
	order := CreatedOrder{CustomerID: customerID, OrderID: c.newID()}

	env := c.factory.NewEnvelope(contracts.SourceNewOrderConsumer, contracts.DetailTypeCreatedOrder, contracts.Detail{
		"customerId": order.CustomerID,
		"orderId":    order.OrderID,
	})

	ack, err := c.publisher.Publish(ctx, env)
	if err != nil {
		return order, nil, err
	}

	c.logger.Info("order created",
		"customerId", order.CustomerID,
		"orderId", order.OrderID,
		"eventId", env.ID,
	)

	return order, ack, nil
}

// Handle creates an order and answers with the uniform response. Failures
// are logged and reported as a 500.
func (c *NewOrderConsumer) Handle(ctx context.Context, customerID string) contracts.Response {
	_, ack, err := c.CreateOrder(ctx, customerID)
	if err != nil {
		c.logger.Error("failed to create order", "customerId", customerID, "error", err)
		return messaging.ErrorResponse(http.StatusInternalServerError, err)
	}

	return contracts.NewResponse(http.StatusOK, contracts.ResponseBody{
		Message:  "Created new order",
		Response: ack,
	})
}

// Handler adapts the consumer to a dispatch rule projecting
// $.detail.customerId. A failed response is returned as an error so the
// dispatcher records it.
func (c *NewOrderConsumer) Handler() messaging.Handler {
	return messaging.HandlerFunc(func(ctx context.Context, input json.RawMessage) error {
		var customerID string
		if err := json.Unmarshal(input, &customerID); err != nil {
			return fmt.Errorf("expected customerId string: %w", err)
		}

		resp := c.Handle(ctx, customerID)
		if resp.StatusCode != http.StatusOK {
			body, _ := resp.DecodeBody()
			return fmt.Errorf("new order consumer answered %d: %s", resp.StatusCode, body.Message)
		}
		return nil
	})
}
