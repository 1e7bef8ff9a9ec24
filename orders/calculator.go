package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// Total sums unitPrice * count over the order items
func Total(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Count)
	}
	return total
}

// Calculator computes order totals
type Calculator struct {
	validator messaging.DetailValidator
	logger    *slog.Logger
}

// CalculatorOption configures the Calculator
type CalculatorOption func(*Calculator)

// WithCalculatorLogger sets the logger
func WithCalculatorLogger(logger *slog.Logger) CalculatorOption {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// WithEventValidator checks incoming events against the MyEvent schema
func WithEventValidator(validator messaging.DetailValidator) CalculatorOption {
	return func(c *Calculator) {
		c.validator = validator
	}
}

// NewCalculator creates a calculator
func NewCalculator(options ...CalculatorOption) *Calculator {
	c := &Calculator{logger: slog.Default()}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Calculate decodes a MyEvent document and returns its total
func (c *Calculator) Calculate(ctx context.Context, raw json.RawMessage) (float64, error) {
	if c.validator != nil {
		detail := contracts.Detail{}
		if err := json.Unmarshal(raw, &detail); err != nil {
			return 0, fmt.Errorf("failed to decode event: %w", err)
		}
		if err := c.validator.Validate(contracts.SourceCalculator, contracts.DetailTypeMyEvent, detail); err != nil {
			return 0, err
		}
	}

	var event MyEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return 0, fmt.Errorf("failed to decode event: %w", err)
	}

	total := Total(event.OrderItems)
	c.logger.Debug("order total calculated",
		"customerId", event.CustomerID,
		"itemCount", len(event.OrderItems),
		"total", total,
	)
	return total, nil
}
