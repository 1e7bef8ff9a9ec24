package eventbridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// PutEventsAPI is the subset of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends entries to an EventBridge bus
type Publisher struct {
	api     PutEventsAPI
	busName string
	logger  *slog.Logger
}

// PublisherOption configures the Publisher
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher. Entries that name no bus go to busName.
func NewPublisher(api PutEventsAPI, busName string, options ...PublisherOption) *Publisher {
	p := &Publisher{
		api:     api,
		busName: busName,
		logger:  slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// PutEvents makes one PutEvents call for all entries
func (p *Publisher) PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	input := &eventbridge.PutEventsInput{
		Entries: make([]ebtypes.PutEventsRequestEntry, len(entries)),
	}
	for i, entry := range entries {
		input.Entries[i] = p.requestEntry(entry)
	}

	output, err := p.api.PutEvents(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put events failed: %w", err)
	}

	ack := &contracts.PublishAck{
		Entries:          make([]contracts.PublishResult, len(output.Entries)),
		FailedEntryCount: int(output.FailedEntryCount),
	}
	for i, e := range output.Entries {
		ack.Entries[i] = contracts.PublishResult{
			EventID:      aws.ToString(e.EventId),
			ErrorCode:    aws.ToString(e.ErrorCode),
			ErrorMessage: aws.ToString(e.ErrorMessage),
		}
	}

	if ack.FailedEntryCount > 0 {
		p.logger.Warn("bus rejected entries",
			"busName", p.busName,
			"failedEntryCount", ack.FailedEntryCount,
		)
	}

	return ack, nil
}

func (p *Publisher) requestEntry(entry contracts.PutEventsEntry) ebtypes.PutEventsRequestEntry {
	bus := entry.EventBusName
	if bus == "" {
		bus = p.busName
	}

	req := ebtypes.PutEventsRequestEntry{
		Source:       aws.String(entry.Source),
		DetailType:   aws.String(entry.DetailType),
		Detail:       aws.String(entry.Detail),
		EventBusName: aws.String(bus),
		Resources:    entry.Resources,
	}
	if !entry.Time.IsZero() {
		req.Time = aws.Time(entry.Time)
	}
	return req
}

var _ messaging.BusPublisher = (*Publisher)(nil)
