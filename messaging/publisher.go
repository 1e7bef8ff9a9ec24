package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/reliability"
)

// EventPublisher publishes envelopes through a bus, one entry per call
type EventPublisher struct {
	bus            BusPublisher
	logger         *slog.Logger
	metrics        MetricsCollector
	validator      DetailValidator
	retryPolicy    reliability.RetryPolicy
	circuitBreaker *reliability.CircuitBreaker
}

// PublisherOption configures the EventPublisher
type PublisherOption func(*EventPublisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *EventPublisher) {
		p.logger = logger
	}
}

// WithPublisherMetrics sets the metrics collector
func WithPublisherMetrics(metrics MetricsCollector) PublisherOption {
	return func(p *EventPublisher) {
		p.metrics = metrics
	}
}

// WithDetailValidator validates every detail before it is published
func WithDetailValidator(validator DetailValidator) PublisherOption {
	return func(p *EventPublisher) {
		p.validator = validator
	}
}

// WithRetryPolicy retries failed publish calls. Without it a publish is
// attempted exactly once.
func WithRetryPolicy(policy reliability.RetryPolicy) PublisherOption {
	return func(p *EventPublisher) {
		p.retryPolicy = policy
	}
}

// WithCircuitBreaker guards publish calls with a circuit breaker
func WithCircuitBreaker(cb *reliability.CircuitBreaker) PublisherOption {
	return func(p *EventPublisher) {
		p.circuitBreaker = cb
	}
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(bus BusPublisher, options ...PublisherOption) *EventPublisher {
	p := &EventPublisher{
		bus:     bus,
		logger:  slog.Default(),
		metrics: &NoOpMetricsCollector{},
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish validates and serialises env and hands it to the bus in a single
// publish call. A transport error or a rejected entry is returned as a
// *contracts.PublishFailure. On success env.ID is set from the acknowledgment
// when it was empty.
func (p *EventPublisher) Publish(ctx context.Context, env *contracts.Envelope) (*contracts.PublishAck, error) {
	if env == nil {
		return nil, fmt.Errorf("envelope cannot be nil")
	}

	if p.validator != nil {
		if err := p.validator.Validate(env.Source, env.DetailType, env.Detail); err != nil {
			return nil, err
		}
	}

	entry, err := contracts.EntryFromEnvelope(env)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var ack *contracts.PublishAck

	publishFunc := func() error {
		var err error
		ack, err = p.putEvent(ctx, entry)
		return err
	}

	if p.circuitBreaker != nil {
		guarded := publishFunc
		publishFunc = func() error {
			return p.circuitBreaker.Execute(ctx, guarded)
		}
	}

	err = reliability.Retry(ctx, p.retryPolicy, publishFunc)
	p.metrics.RecordPublish(env.Source, env.DetailType, time.Since(start), err == nil)

	if err != nil {
		if !errors.Is(err, contracts.ErrPublish) {
			err = &contracts.PublishFailure{Source: env.Source, DetailType: env.DetailType, Err: err}
		}
		p.logger.Error("failed to publish event",
			"source", env.Source,
			"detailType", env.DetailType,
			"busName", env.BusName,
			"error", err,
		)
		return nil, err
	}

	if env.ID == "" {
		env.ID = ack.Entries[0].EventID
	}

	p.logger.Debug("event published",
		"eventId", ack.Entries[0].EventID,
		"source", env.Source,
		"detailType", env.DetailType,
		"busName", env.BusName,
	)

	return ack, nil
}

// putEvent makes one bus call for one entry and checks the acknowledgment
func (p *EventPublisher) putEvent(ctx context.Context, entry contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	ack, err := p.bus.PutEvents(ctx, []contracts.PutEventsEntry{entry})
	if err != nil {
		return nil, &contracts.PublishFailure{Source: entry.Source, DetailType: entry.DetailType, Err: err}
	}

	if ack == nil || len(ack.Entries) != 1 {
		return nil, &contracts.PublishFailure{
			Source:     entry.Source,
			DetailType: entry.DetailType,
			Err:        fmt.Errorf("bus returned no acknowledgment for the entry"),
		}
	}

	if result := ack.Entries[0]; ack.FailedEntryCount > 0 || result.Failed() {
		return nil, &contracts.PublishFailure{
			Source:       entry.Source,
			DetailType:   entry.DetailType,
			ErrorCode:    result.ErrorCode,
			ErrorMessage: result.ErrorMessage,
		}
	}

	return ack, nil
}
