package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/rabbitmq"
	"github.com/glimte/orderflow/messaging"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message headers carrying the envelope fields AMQP has no property for
const (
	HeaderSource    = "x-event-source"
	HeaderResources = "x-event-resources"
)

// ErrorCodePublishFailed marks an entry the broker did not accept
const ErrorCodePublishFailed = "PublishFailed"

// Transport is an event bus over a RabbitMQ topic exchange named after the
// bus. Events are routed with the key "<source>.<detailType>"; every
// dispatch rule consumes from its own durable queue.
type Transport struct {
	provider    rabbitmq.ChannelProvider
	exchange    string
	consumerTag string
	logger      *slog.Logger
	conn        io.Closer

	mu        sync.Mutex
	pubCh     rabbitmq.Channel
	declared  map[string]bool
	consumers []rabbitmq.Channel
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// TransportOption configures the Transport
type TransportOption func(*Transport)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithConsumerTag sets the tag prefix of rule consumers
func WithConsumerTag(tag string) TransportOption {
	return func(t *Transport) {
		t.consumerTag = tag
	}
}

// NewTransport creates a transport for the bus exchange. Entries that name
// no bus are published to it.
func NewTransport(provider rabbitmq.ChannelProvider, exchange string, options ...TransportOption) *Transport {
	t := &Transport{
		provider:    provider,
		exchange:    exchange,
		consumerTag: "orderflow",
		logger:      slog.Default(),
		declared:    make(map[string]bool),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

// Dial connects to the broker and returns a transport over the connection.
// Closing the transport closes the connection.
func Dial(ctx context.Context, url, exchange string, options ...TransportOption) (*Transport, error) {
	t := NewTransport(nil, exchange, options...)

	manager := rabbitmq.NewConnectionManager(url, rabbitmq.WithConnectionLogger(t.logger))
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	t.provider = manager
	t.conn = manager

	return t, nil
}

// IsConnected reports whether the broker connection is up
func (t *Transport) IsConnected() bool {
	if state, ok := t.provider.(interface{ IsConnected() bool }); ok {
		return state.IsConnected()
	}
	return t.provider != nil
}

// PutEvents publishes each entry. A broker error rejects that entry in the
// acknowledgment; failing to obtain a channel fails the whole call.
func (t *Transport) PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ack := &contracts.PublishAck{Entries: make([]contracts.PublishResult, 0, len(entries))}

	for _, entry := range entries {
		ch, err := t.publishChannel()
		if err != nil {
			return nil, err
		}

		exchange := entry.EventBusName
		if exchange == "" {
			exchange = t.exchange
		}

		id, err := t.publish(ctx, ch, exchange, entry)
		if err != nil {
			t.logger.Error("failed to publish event",
				"exchange", exchange,
				"routingKey", rabbitmq.RoutingKey(entry.Source, entry.DetailType),
				"error", err,
			)
			t.resetPublishChannel()
			ack.FailedEntryCount++
			ack.Entries = append(ack.Entries, contracts.PublishResult{
				ErrorCode:    ErrorCodePublishFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}

		ack.Entries = append(ack.Entries, contracts.PublishResult{EventID: id})
	}

	return ack, nil
}

// publish must be called with mu held
func (t *Transport) publish(ctx context.Context, ch rabbitmq.Channel, exchange string, entry contracts.PutEventsEntry) (string, error) {
	if !t.declared[exchange] {
		if err := rabbitmq.DeclareExchange(ch, exchange); err != nil {
			return "", err
		}
		t.declared[exchange] = true
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	headers := amqp.Table{HeaderSource: entry.Source}
	if len(entry.Resources) > 0 {
		resources := make([]interface{}, len(entry.Resources))
		for i, r := range entry.Resources {
			resources[i] = r
		}
		headers[HeaderResources] = resources
	}

	msg := amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    ts,
		Type:         entry.DetailType,
		Body:         []byte(entry.Detail),
	}

	if err := ch.PublishWithContext(ctx, exchange, rabbitmq.RoutingKey(entry.Source, entry.DetailType), false, false, msg); err != nil {
		return "", err
	}
	return id, nil
}

// publishChannel must be called with mu held
func (t *Transport) publishChannel() (rabbitmq.Channel, error) {
	if t.pubCh != nil {
		return t.pubCh, nil
	}
	if t.provider == nil {
		return nil, rabbitmq.ErrConnectionNotReady
	}
	ch, err := t.provider.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	t.pubCh = ch
	return ch, nil
}

// resetPublishChannel must be called with mu held. A failed publish may
// have closed the channel, so the next entry opens a new one.
func (t *Transport) resetPublishChannel() {
	if t.pubCh != nil {
		t.pubCh.Close()
		t.pubCh = nil
	}
	t.declared = make(map[string]bool)
}

// Topology derives the exchange, queues and bindings for a rule set
func (t *Transport) Topology(rules []messaging.Rule) rabbitmq.Topology {
	topology := rabbitmq.Topology{Exchange: t.exchange}
	for _, rule := range rules {
		q := rabbitmq.QueueTopology{Name: rabbitmq.QueueName(t.exchange, rule.Name)}
		for _, b := range rule.Bindings() {
			q.BindingKeys = append(q.BindingKeys, rabbitmq.BindingKey(b.Source, b.DetailType))
		}
		topology.Queues = append(topology.Queues, q)
	}
	return topology
}

// Subscribe declares a queue per rule and starts consuming. Deliveries are
// acknowledged once the rule's handler has run, whatever its outcome.
func (t *Transport) Subscribe(ctx context.Context, dispatcher messaging.EnvelopeDispatcher) error {
	if dispatcher == nil {
		return fmt.Errorf("dispatcher cannot be nil")
	}
	if t.provider == nil {
		return rabbitmq.ErrConnectionNotReady
	}

	rules := dispatcher.Rules()
	if len(rules) == 0 {
		return fmt.Errorf("dispatcher has no rules")
	}

	ch, err := t.provider.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}

	if err := t.Topology(rules).Declare(ch); err != nil {
		ch.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)

	for _, rule := range rules {
		queue := rabbitmq.QueueName(t.exchange, rule.Name)
		deliveries, err := ch.Consume(queue, t.consumerTag+"."+rule.Name, false, false, false, false, nil)
		if err != nil {
			cancel()
			ch.Close()
			return fmt.Errorf("failed to consume from %s: %w", queue, err)
		}

		t.wg.Add(1)
		go t.consume(ctx, rule.Name, deliveries, dispatcher)
	}

	t.mu.Lock()
	t.consumers = append(t.consumers, ch)
	prev := t.cancel
	t.cancel = func() {
		if prev != nil {
			prev()
		}
		cancel()
	}
	t.mu.Unlock()

	t.logger.Info("subscribed to bus", "exchange", t.exchange, "ruleCount", len(rules))
	return nil
}

func (t *Transport) consume(ctx context.Context, rule string, deliveries <-chan amqp.Delivery, dispatcher messaging.EnvelopeDispatcher) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				t.logger.Warn("delivery channel closed", "rule", rule)
				return
			}
			t.handleDelivery(ctx, rule, d, dispatcher)
		}
	}
}

func (t *Transport) handleDelivery(ctx context.Context, rule string, d amqp.Delivery, dispatcher messaging.EnvelopeDispatcher) {
	env, err := EnvelopeFromDelivery(d)
	if err != nil {
		t.logger.Error("dropping malformed delivery", "rule", rule, "messageId", d.MessageId, "error", err)
		if err := d.Nack(false, false); err != nil {
			t.logger.Error("failed to nack delivery", "messageId", d.MessageId, "error", err)
		}
		return
	}

	dispatcher.DispatchRule(ctx, rule, env)

	if err := d.Ack(false); err != nil {
		t.logger.Error("failed to ack delivery", "messageId", d.MessageId, "error", err)
	}
}

// EnvelopeFromDelivery rebuilds the envelope a delivery carries
func EnvelopeFromDelivery(d amqp.Delivery) (*contracts.Envelope, error) {
	source, _ := d.Headers[HeaderSource].(string)
	if source == "" || d.Type == "" {
		return nil, fmt.Errorf("delivery %s has no source or detail type", d.MessageId)
	}

	var resources []string
	if raw, ok := d.Headers[HeaderResources].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				resources = append(resources, s)
			}
		}
	}

	return contracts.EnvelopeFromEntry(d.MessageId, contracts.PutEventsEntry{
		Source:       source,
		DetailType:   d.Type,
		Detail:       string(d.Body),
		EventBusName: d.Exchange,
		Time:         d.Timestamp,
		Resources:    resources,
	})
}

// Close stops the consumers and closes the channels
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	consumers := t.consumers
	t.consumers = nil
	t.resetPublishChannel()
	t.mu.Unlock()

	var firstErr error
	for _, ch := range consumers {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	t.wg.Wait()

	if t.conn != nil {
		if err := t.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ messaging.BusPublisher  = (*Transport)(nil)
	_ messaging.BusSubscriber = (*Transport)(nil)
)
