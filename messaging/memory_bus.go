package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glimte/orderflow/contracts"
	"github.com/google/uuid"
)

// MemoryBus is an in-process bus. Published entries are delivered
// synchronously to every subscribed dispatcher before PutEvents returns.
type MemoryBus struct {
	mu          sync.RWMutex
	published   []*contracts.Envelope
	subscribers []EnvelopeDispatcher
	closed      bool
	logger      *slog.Logger
}

// MemoryBusOption configures the MemoryBus
type MemoryBusOption func(*MemoryBus)

// WithMemoryBusLogger sets the logger
func WithMemoryBusLogger(logger *slog.Logger) MemoryBusOption {
	return func(b *MemoryBus) {
		b.logger = logger
	}
}

// NewMemoryBus creates an empty in-memory bus
func NewMemoryBus(options ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{logger: slog.Default()}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// PutEvents assigns an ID to each entry that has none, records it and delivers it to the
// subscribers. An entry whose detail is not valid JSON is rejected in the
// acknowledgment without failing the call.
func (b *MemoryBus) PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("bus is closed")
	}

	ack := &contracts.PublishAck{Entries: make([]contracts.PublishResult, 0, len(entries))}
	var accepted []*contracts.Envelope
	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = uuid.New().String()
		}
		env, err := contracts.EnvelopeFromEntry(id, entry)
		if err != nil {
			ack.FailedEntryCount++
			ack.Entries = append(ack.Entries, contracts.PublishResult{
				ErrorCode:    "MalformedDetail",
				ErrorMessage: err.Error(),
			})
			continue
		}
		b.published = append(b.published, env)
		accepted = append(accepted, env)
		ack.Entries = append(ack.Entries, contracts.PublishResult{EventID: env.ID})
	}
	subscribers := append([]EnvelopeDispatcher(nil), b.subscribers...)
	b.mu.Unlock()

	// Handlers may publish follow-up events, so delivery runs outside the lock
	for _, env := range accepted {
		for _, sub := range subscribers {
			report := sub.Dispatch(ctx, env)
			if len(report.Failed) > 0 {
				b.logger.Warn("delivery had failed handlers",
					"eventId", env.ID,
					"detailType", env.DetailType,
					"failedCount", len(report.Failed),
				)
			}
		}
	}

	return ack, nil
}

// Subscribe registers a dispatcher for every subsequently published entry
func (b *MemoryBus) Subscribe(ctx context.Context, dispatcher EnvelopeDispatcher) error {
	if dispatcher == nil {
		return fmt.Errorf("dispatcher cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	b.subscribers = append(b.subscribers, dispatcher)
	return nil
}

// Published returns the envelopes accepted so far
func (b *MemoryBus) Published() []*contracts.Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*contracts.Envelope(nil), b.published...)
}

// Close stops the bus
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = nil
	return nil
}
