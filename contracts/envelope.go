package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event sources
const (
	SourceProducer         = "com.hello-world.producer"
	SourceNewOrderConsumer = "com.hello-world.new-order-consumer"
	SourceCalculator       = "com.hello-world.calculator"
)

// Detail types
const (
	DetailTypeNewOrder     = "NewOrder"
	DetailTypeUpdateOrder  = "UpdateOrder"
	DetailTypeCreatedOrder = "CreatedOrder"
	DetailTypeMyEvent      = "MyEvent"
)

// Detail is the payload of an envelope. Its shape is fixed by the envelope's
// (Source, DetailType) pair.
type Detail map[string]interface{}

// Envelope wraps an event for transport over a bus
type Envelope struct {
	ID         string    `json:"id,omitempty"`
	Source     string    `json:"source"`
	DetailType string    `json:"detail-type"`
	Detail     Detail    `json:"detail"`
	BusName    string    `json:"-"`
	Time       time.Time `json:"time"`
	Resources  []string  `json:"resources,omitempty"`
}

// Key returns the (source, detailType) pair as a single string
func (e *Envelope) Key() string {
	return EventKey(e.Source, e.DetailType)
}

// EventKey joins a source and detail type
func EventKey(source, detailType string) string {
	return fmt.Sprintf("%s/%s", source, detailType)
}

// PutEventsEntry is an envelope serialised for a bus publish call. ID is
// optional; buses that can carry a caller-chosen event id use it instead of
// assigning a fresh one.
type PutEventsEntry struct {
	ID           string    `json:"id,omitempty"`
	Source       string    `json:"source"`
	DetailType   string    `json:"detailType"`
	Detail       string    `json:"detail"`
	EventBusName string    `json:"eventBusName"`
	Time         time.Time `json:"time,omitempty"`
	Resources    []string  `json:"resources,omitempty"`
}

// PublishResult is the bus acknowledgment for a single entry
type PublishResult struct {
	EventID      string `json:"eventId,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Failed reports whether the bus rejected the entry
func (r PublishResult) Failed() bool {
	return r.ErrorCode != ""
}

// PublishAck is the bus acknowledgment for a publish call
type PublishAck struct {
	Entries          []PublishResult `json:"entries"`
	FailedEntryCount int             `json:"failedEntryCount"`
}

// EntryFromEnvelope serialises an envelope's detail and copies its routing fields
func EntryFromEnvelope(env *Envelope) (PutEventsEntry, error) {
	if env == nil {
		return PutEventsEntry{}, fmt.Errorf("envelope cannot be nil")
	}
	detail := env.Detail
	if detail == nil {
		detail = Detail{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return PutEventsEntry{}, fmt.Errorf("failed to marshal detail for %s: %w", env.Key(), err)
	}
	return PutEventsEntry{
		ID:           env.ID,
		Source:       env.Source,
		DetailType:   env.DetailType,
		Detail:       string(raw),
		EventBusName: env.BusName,
		Time:         env.Time,
		Resources:    env.Resources,
	}, nil
}

// EnvelopeFromEntry decodes a serialised entry back into an envelope. An empty
// id falls back to entry.ID.
func EnvelopeFromEntry(id string, entry PutEventsEntry) (*Envelope, error) {
	detail := Detail{}
	if entry.Detail != "" {
		if err := json.Unmarshal([]byte(entry.Detail), &detail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal detail for %s: %w",
				EventKey(entry.Source, entry.DetailType), err)
		}
	}
	if id == "" {
		id = entry.ID
	}
	return &Envelope{
		ID:         id,
		Source:     entry.Source,
		DetailType: entry.DetailType,
		Detail:     detail,
		BusName:    entry.EventBusName,
		Time:       entry.Time,
		Resources:  entry.Resources,
	}, nil
}
