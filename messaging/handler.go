package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glimte/orderflow/contracts"
)

// Handler processes the input a dispatch rule projected from an envelope.
// The input is the envelope detail unless the rule sets InputPath or Input.
type Handler interface {
	Handle(ctx context.Context, input json.RawMessage) error
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, input json.RawMessage) error

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, input json.RawMessage) error {
	return f(ctx, input)
}

type envelopeContextKey struct{}

// ContextWithEnvelope returns a context carrying the envelope being dispatched
func ContextWithEnvelope(ctx context.Context, env *contracts.Envelope) context.Context {
	return context.WithValue(ctx, envelopeContextKey{}, env)
}

// EnvelopeFromContext returns the envelope being dispatched, if any
func EnvelopeFromContext(ctx context.Context) (*contracts.Envelope, bool) {
	env, ok := ctx.Value(envelopeContextKey{}).(*contracts.Envelope)
	return env, ok && env != nil
}

// TypedHandler decodes the handler input into T before calling fn
func TypedHandler[T any](fn func(ctx context.Context, input T) error) Handler {
	return HandlerFunc(func(ctx context.Context, raw json.RawMessage) error {
		var input T
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("failed to decode handler input: %w", err)
		}
		return fn(ctx, input)
	})
}
