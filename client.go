// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orderflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/reliability"
	"github.com/glimte/orderflow/messaging"
	"github.com/glimte/orderflow/orders"
)

// ErrNoSubscriber is returned by Subscribe when the bus only publishes
var ErrNoSubscriber = errors.New("bus does not support subscriptions")

// Client wires the order flow onto one bus: the producer router, the
// publisher behind it and the dispatcher running the consumer rules
type Client struct {
	bus        messaging.BusPublisher
	busName    string
	publisher  *messaging.EventPublisher
	router     *messaging.Router
	dispatcher *messaging.Dispatcher
	consumer   *orders.NewOrderConsumer
	logger     *slog.Logger
}

// NewClient creates a client publishing to busName over bus
func NewClient(bus messaging.BusPublisher, busName string, options ...ClientOption) (*Client, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	if busName == "" {
		return nil, fmt.Errorf("bus name cannot be empty")
	}

	cfg := &clientConfig{
		logger:           slog.Default(),
		metrics:          &messaging.NoOpMetricsCollector{},
		validationStatus: 500,
	}

	for _, opt := range options {
		opt(cfg)
	}

	publisherOpts := []messaging.PublisherOption{
		messaging.WithPublisherLogger(cfg.logger),
		messaging.WithPublisherMetrics(cfg.metrics),
	}
	if cfg.validator != nil {
		publisherOpts = append(publisherOpts, messaging.WithDetailValidator(cfg.validator))
	}
	if cfg.retryPolicy != nil {
		publisherOpts = append(publisherOpts, messaging.WithRetryPolicy(cfg.retryPolicy))
	}
	if cfg.circuitBreaker != nil {
		publisherOpts = append(publisherOpts, messaging.WithCircuitBreaker(cfg.circuitBreaker))
	}
	publisher := messaging.NewEventPublisher(bus, publisherOpts...)

	router := messaging.NewRouter(
		publisher,
		orders.Routes(busName),
		messaging.WithRouterLogger(cfg.logger),
		messaging.WithRouterMetrics(cfg.metrics),
		messaging.WithValidationStatus(cfg.validationStatus),
	)

	dispatcher := messaging.NewDispatcher(
		messaging.WithDispatcherLogger(cfg.logger),
		messaging.WithDispatcherMetrics(cfg.metrics),
		messaging.WithMiddleware(cfg.middleware...),
	)

	consumer := orders.NewNewOrderConsumer(publisher, busName, orders.WithConsumerLogger(cfg.logger))
	if err := orders.RegisterDefaultRules(dispatcher, consumer, cfg.notifier); err != nil {
		return nil, fmt.Errorf("failed to register rules: %w", err)
	}

	return &Client{
		bus:        bus,
		busName:    busName,
		publisher:  publisher,
		router:     router,
		dispatcher: dispatcher,
		consumer:   consumer,
		logger:     cfg.logger,
	}, nil
}

// Handle routes an inbound request and answers with the uniform response
func (c *Client) Handle(ctx context.Context, req *contracts.Request) contracts.Response {
	return c.router.Handle(ctx, req)
}

// Publish publishes an envelope on the client's bus
func (c *Client) Publish(ctx context.Context, env *contracts.Envelope) (*contracts.PublishAck, error) {
	if env.BusName == "" {
		env.BusName = c.busName
	}
	return c.publisher.Publish(ctx, env)
}

// Subscribe delivers bus events to the dispatcher
func (c *Client) Subscribe(ctx context.Context) error {
	subscriber, ok := c.bus.(messaging.BusSubscriber)
	if !ok {
		return ErrNoSubscriber
	}
	return subscriber.Subscribe(ctx, c.dispatcher)
}

// BusName returns the bus events are published to
func (c *Client) BusName() string {
	return c.busName
}

// Publisher returns the event publisher
func (c *Client) Publisher() *messaging.EventPublisher {
	return c.publisher
}

// Router returns the request router
func (c *Client) Router() *messaging.Router {
	return c.router
}

// Dispatcher returns the event dispatcher
func (c *Client) Dispatcher() *messaging.Dispatcher {
	return c.dispatcher
}

// Consumer returns the new-order consumer
func (c *Client) Consumer() *orders.NewOrderConsumer {
	return c.consumer
}

// Close closes the bus when it holds resources
func (c *Client) Close() error {
	if subscriber, ok := c.bus.(messaging.BusSubscriber); ok {
		return subscriber.Close()
	}
	return nil
}

// clientConfig holds client configuration
type clientConfig struct {
	logger           *slog.Logger
	metrics          messaging.MetricsCollector
	validator        messaging.DetailValidator
	validationStatus int
	retryPolicy      reliability.RetryPolicy
	circuitBreaker   *reliability.CircuitBreaker
	notifier         *orders.WaitNotifier
	middleware       []messaging.MiddlewareFunc
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithMetrics sets the metrics collector for all components
func WithMetrics(metrics messaging.MetricsCollector) ClientOption {
	return func(cfg *clientConfig) {
		cfg.metrics = metrics
	}
}

// WithDetailValidator validates every detail before it is published
func WithDetailValidator(validator messaging.DetailValidator) ClientOption {
	return func(cfg *clientConfig) {
		cfg.validator = validator
	}
}

// WithValidationStatus sets the status validation failures are answered with
func WithValidationStatus(statusCode int) ClientOption {
	return func(cfg *clientConfig) {
		cfg.validationStatus = statusCode
	}
}

// WithPublishRetry retries failed publishes with exponential backoff
func WithPublishRetry(maxRetries int, initialDelay, maxDelay time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.retryPolicy = reliability.NewExponentialBackoff(initialDelay, maxDelay, 2.0, maxRetries)
	}
}

// WithPublishCircuitBreaker stops publishing after consecutive failures
func WithPublishCircuitBreaker(failureThreshold int, timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.circuitBreaker = reliability.NewCircuitBreaker(
			reliability.WithName("publisher"),
			reliability.WithFailureThreshold(failureThreshold),
			reliability.WithTimeout(timeout),
		)
	}
}

// WithWaitNotifier registers the wait-notifier rule next to the consumer
func WithWaitNotifier(notifier *orders.WaitNotifier) ClientOption {
	return func(cfg *clientConfig) {
		cfg.notifier = notifier
	}
}

// WithDispatchMiddleware wraps every rule handler
func WithDispatchMiddleware(middleware ...messaging.MiddlewareFunc) ClientOption {
	return func(cfg *clientConfig) {
		cfg.middleware = append(cfg.middleware, middleware...)
	}
}
