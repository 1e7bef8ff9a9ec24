package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Message headers carrying the envelope fields
const (
	HeaderEventID    = "event-id"
	HeaderSource     = "source"
	HeaderDetailType = "detail-type"
	HeaderResources  = "resources"
)

// ErrorCodeWriteFailed marks an entry the broker did not accept
const ErrorCodeWriteFailed = "WriteFailed"

// MessageWriter is the subset of *kafka.Writer the transport uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader the transport uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReaderFactory opens a reader on a topic for a consumer group
type ReaderFactory func(topic, groupID string) MessageReader

var _ MessageWriter = (*kafkago.Writer)(nil)
var _ MessageReader = (*kafkago.Reader)(nil)

// MessageKey partitions events by (source, detailType)
func MessageKey(source, detailType string) []byte {
	return []byte(source + "|" + detailType)
}

// GroupID is the consumer group a rule reads with
func GroupID(topic, rule string) string {
	return topic + "." + rule
}

// Transport is an event bus over a Kafka topic named after the bus. Each
// dispatch rule reads the topic in its own consumer group and only
// handles the events it matches.
type Transport struct {
	writer     MessageWriter
	newReader  ReaderFactory
	topic      string
	logger     *slog.Logger
	retryDelay time.Duration

	mu      sync.Mutex
	readers []MessageReader
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// TransportOption configures the Transport
type TransportOption func(*Transport)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithReaderFactory sets how rule readers are opened
func WithReaderFactory(factory ReaderFactory) TransportOption {
	return func(t *Transport) {
		t.newReader = factory
	}
}

// WithFetchRetryDelay sets the pause after a failed fetch
func WithFetchRetryDelay(delay time.Duration) TransportOption {
	return func(t *Transport) {
		t.retryDelay = delay
	}
}

// NewTransport creates a transport writing to the bus topic. Entries that
// name no bus are written to it.
func NewTransport(writer MessageWriter, topic string, options ...TransportOption) *Transport {
	t := &Transport{
		writer:     writer,
		topic:      topic,
		logger:     slog.Default(),
		retryDelay: time.Second,
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

// Dial creates a transport backed by kafka-go clients for the brokers
func Dial(brokers []string, topic string, options ...TransportOption) *Transport {
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport: &kafkago.Transport{
			ClientID:    "orderflow",
			MetadataTTL: 10 * time.Second,
		},
	}

	factory := func(topic, groupID string) MessageReader {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			StartOffset:    kafkago.LastOffset,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        500 * time.Millisecond,
			ReadBackoffMin: 100 * time.Millisecond,
			ReadBackoffMax: time.Second,
		})
	}

	return NewTransport(writer, topic, append([]TransportOption{WithReaderFactory(factory)}, options...)...)
}

// PutEvents writes every entry in one batch. Messages the broker rejects
// are reported per entry; any other write error fails the whole call.
func (t *Transport) PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	if t.writer == nil {
		return nil, fmt.Errorf("kafka writer is not configured")
	}

	msgs := make([]kafkago.Message, len(entries))
	ids := make([]string, len(entries))
	for i, entry := range entries {
		msg, err := t.toMessage(entry)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
		ids[i] = string(msg.Headers[0].Value)
	}

	ack := &contracts.PublishAck{Entries: make([]contracts.PublishResult, len(entries))}

	err := t.writer.WriteMessages(ctx, msgs...)
	var writeErrs kafkago.WriteErrors
	switch {
	case err == nil:
	case errors.As(err, &writeErrs) && len(writeErrs) == len(msgs):
		for i, werr := range writeErrs {
			if werr == nil {
				continue
			}
			t.logger.Error("failed to write event",
				"topic", msgs[i].Topic,
				"key", string(msgs[i].Key),
				"error", werr,
			)
			ack.FailedEntryCount++
			ack.Entries[i] = contracts.PublishResult{
				ErrorCode:    ErrorCodeWriteFailed,
				ErrorMessage: werr.Error(),
			}
		}
	default:
		return nil, fmt.Errorf("failed to write events: %w", err)
	}

	for i := range ack.Entries {
		if !ack.Entries[i].Failed() {
			ack.Entries[i].EventID = ids[i]
		}
	}

	return ack, nil
}

func (t *Transport) toMessage(entry contracts.PutEventsEntry) (kafkago.Message, error) {
	topic := entry.EventBusName
	if topic == "" {
		topic = t.topic
	}

	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	headers := []kafkago.Header{
		{Key: HeaderEventID, Value: []byte(id)},
		{Key: HeaderSource, Value: []byte(entry.Source)},
		{Key: HeaderDetailType, Value: []byte(entry.DetailType)},
	}
	if len(entry.Resources) > 0 {
		raw, err := json.Marshal(entry.Resources)
		if err != nil {
			return kafkago.Message{}, fmt.Errorf("failed to marshal resources: %w", err)
		}
		headers = append(headers, kafkago.Header{Key: HeaderResources, Value: raw})
	}

	return kafkago.Message{
		Topic:   topic,
		Key:     MessageKey(entry.Source, entry.DetailType),
		Value:   []byte(entry.Detail),
		Headers: headers,
		Time:    ts,
	}, nil
}

// Subscribe starts one reader per rule. Messages are committed once the
// rule's handler has run, whatever its outcome.
func (t *Transport) Subscribe(ctx context.Context, dispatcher messaging.EnvelopeDispatcher) error {
	if dispatcher == nil {
		return fmt.Errorf("dispatcher cannot be nil")
	}
	if t.newReader == nil {
		return fmt.Errorf("kafka reader factory is not configured")
	}

	rules := dispatcher.Rules()
	if len(rules) == 0 {
		return fmt.Errorf("dispatcher has no rules")
	}

	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rule := range rules {
		reader := t.newReader(t.topic, GroupID(t.topic, rule.Name))
		t.readers = append(t.readers, reader)

		t.wg.Add(1)
		go t.consume(ctx, rule, reader, dispatcher)
	}

	prev := t.cancel
	t.cancel = func() {
		if prev != nil {
			prev()
		}
		cancel()
	}

	t.logger.Info("subscribed to bus", "topic", t.topic, "ruleCount", len(rules))
	return nil
}

func (t *Transport) consume(ctx context.Context, rule messaging.Rule, reader MessageReader, dispatcher messaging.EnvelopeDispatcher) {
	defer t.wg.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("failed to fetch message", "rule", rule.Name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.retryDelay):
			}
			continue
		}

		t.handleMessage(ctx, rule, msg, dispatcher)

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			t.logger.Error("failed to commit message",
				"rule", rule.Name,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (t *Transport) handleMessage(ctx context.Context, rule messaging.Rule, msg kafkago.Message, dispatcher messaging.EnvelopeDispatcher) {
	env, err := EnvelopeFromMessage(msg)
	if err != nil {
		t.logger.Error("dropping malformed message",
			"rule", rule.Name,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}

	if !rule.Matches(env) {
		return
	}

	dispatcher.DispatchRule(ctx, rule.Name, env)
}

// EnvelopeFromMessage rebuilds the envelope a message carries
func EnvelopeFromMessage(msg kafkago.Message) (*contracts.Envelope, error) {
	entry := contracts.PutEventsEntry{
		Detail:       string(msg.Value),
		EventBusName: msg.Topic,
		Time:         msg.Time,
	}
	var id string

	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderEventID:
			id = string(h.Value)
		case HeaderSource:
			entry.Source = string(h.Value)
		case HeaderDetailType:
			entry.DetailType = string(h.Value)
		case HeaderResources:
			if err := json.Unmarshal(h.Value, &entry.Resources); err != nil {
				return nil, fmt.Errorf("invalid resources header: %w", err)
			}
		}
	}

	// Producers that set no headers still key by source and detail type
	if entry.Source == "" && entry.DetailType == "" {
		if source, detailType, ok := strings.Cut(string(msg.Key), "|"); ok {
			entry.Source, entry.DetailType = source, detailType
		}
	}

	if entry.Source == "" || entry.DetailType == "" {
		return nil, fmt.Errorf("message at offset %d has no source or detail type", msg.Offset)
	}

	return contracts.EnvelopeFromEntry(id, entry)
}

// Close stops the readers and closes the writer
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	readers := t.readers
	t.readers = nil
	t.mu.Unlock()

	t.wg.Wait()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.writer != nil {
		if err := t.writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ messaging.BusPublisher  = (*Transport)(nil)
	_ messaging.BusSubscriber = (*Transport)(nil)
)
