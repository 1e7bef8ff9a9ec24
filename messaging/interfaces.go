package messaging

import (
	"context"
	"time"

	"github.com/glimte/orderflow/contracts"
)

// Publisher publishes a single envelope
type Publisher interface {
	Publish(ctx context.Context, env *contracts.Envelope) (*contracts.PublishAck, error)
}

// DetailValidator checks that a detail has the shape registered for its
// (source, detailType) pair
type DetailValidator interface {
	Validate(source, detailType string, detail contracts.Detail) error
}

// MetricsCollector collects router, publisher and dispatcher metrics
type MetricsCollector interface {
	// RecordRoute records a routed request and the status it was answered with
	RecordRoute(route string, statusCode int, duration time.Duration)

	// RecordPublish records a bus publish call
	RecordPublish(source, detailType string, duration time.Duration, success bool)

	// RecordDispatch records a handler invocation
	RecordDispatch(rule string, duration time.Duration, success bool)
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector
type NoOpMetricsCollector struct{}

// RecordRoute does nothing
func (n *NoOpMetricsCollector) RecordRoute(route string, statusCode int, duration time.Duration) {}

// RecordPublish does nothing
func (n *NoOpMetricsCollector) RecordPublish(source, detailType string, duration time.Duration, success bool) {
}

// RecordDispatch does nothing
func (n *NoOpMetricsCollector) RecordDispatch(rule string, duration time.Duration, success bool) {}
