package messaging

import (
	"context"

	"github.com/glimte/orderflow/contracts"
)

// BusPublisher is the publish side of an event bus. It accepts a batch of
// entries and returns one acknowledgment per entry, in order.
type BusPublisher interface {
	PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error)
}

// EnvelopeDispatcher receives envelopes delivered by a bus subscriber
type EnvelopeDispatcher interface {
	// Rules returns the dispatch rules the subscriber must route
	Rules() []Rule

	// Dispatch delivers an envelope to every matching handler
	Dispatch(ctx context.Context, env *contracts.Envelope) DispatchReport

	// DispatchRule delivers an envelope to the handler of one rule
	DispatchRule(ctx context.Context, ruleName string, env *contracts.Envelope) DispatchReport
}

// BusSubscriber is the consume side of an event bus
type BusSubscriber interface {
	// Subscribe starts delivering envelopes that match the dispatcher's rules
	Subscribe(ctx context.Context, dispatcher EnvelopeDispatcher) error

	// Close stops delivery and releases resources
	Close() error
}

// BusPublisherFunc adapts a function to BusPublisher
type BusPublisherFunc func(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error)

// PutEvents implements BusPublisher
func (f BusPublisherFunc) PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	return f(ctx, entries)
}
