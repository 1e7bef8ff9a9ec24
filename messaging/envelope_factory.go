package messaging

import (
	"time"

	"github.com/glimte/orderflow/contracts"
	"github.com/google/uuid"
)

// idempotencyNamespace seeds deterministic envelope IDs derived from caller keys
var idempotencyNamespace = uuid.MustParse("8f1d6c2a-4b7e-4c1a-9a53-2f0e6d9b7c41")

// EnvelopeOption configures envelope creation
type EnvelopeOption func(*contracts.Envelope)

// WithEnvelopeID sets a custom envelope ID
func WithEnvelopeID(id string) EnvelopeOption {
	return func(e *contracts.Envelope) {
		e.ID = id
	}
}

// WithEnvelopeTime sets the event time
func WithEnvelopeTime(t time.Time) EnvelopeOption {
	return func(e *contracts.Envelope) {
		e.Time = t.UTC()
	}
}

// WithEnvelopeResources sets the resources the event concerns
func WithEnvelopeResources(resources ...string) EnvelopeOption {
	return func(e *contracts.Envelope) {
		e.Resources = append(e.Resources, resources...)
	}
}

// WithIdempotencyKey derives a stable envelope ID from a caller-supplied key,
// so that repeated publishes of the same logical event carry the same ID
func WithIdempotencyKey(key string) EnvelopeOption {
	return func(e *contracts.Envelope) {
		if key == "" {
			return
		}
		e.ID = uuid.NewSHA1(idempotencyNamespace, []byte(contracts.EventKey(e.Source, e.DetailType)+"|"+key)).String()
	}
}

// EnvelopeFactory builds envelopes addressed to one bus
type EnvelopeFactory struct {
	busName string
	now     func() time.Time
}

// NewEnvelopeFactory creates a factory for envelopes published to busName
func NewEnvelopeFactory(busName string) *EnvelopeFactory {
	return &EnvelopeFactory{
		busName: busName,
		now:     time.Now,
	}
}

// BusName returns the bus the factory addresses
func (f *EnvelopeFactory) BusName() string {
	return f.busName
}

// NewEnvelope creates an envelope with the current time. The ID is left empty
// for the bus to assign unless an option sets it.
func (f *EnvelopeFactory) NewEnvelope(source, detailType string, detail contracts.Detail, opts ...EnvelopeOption) *contracts.Envelope {
	if detail == nil {
		detail = contracts.Detail{}
	}

	env := &contracts.Envelope{
		Source:     source,
		DetailType: detailType,
		Detail:     detail,
		BusName:    f.busName,
		Time:       f.now().UTC(),
	}

	for _, opt := range opts {
		opt(env)
	}

	return env
}
