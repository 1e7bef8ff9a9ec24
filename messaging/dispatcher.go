package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/reliability"
)

// RuleRegistration binds a rule to its handler
type RuleRegistration struct {
	Rule    Rule
	Handler Handler
}

// DispatchReport records the outcome of delivering one envelope
type DispatchReport struct {
	EventID string
	// Matched lists the names of the rules the envelope matched, in
	// registration order
	Matched []string
	// Failed maps a rule name to the error its handler returned
	Failed map[string]error
}

// Delivered reports whether at least one handler ran without error
func (r DispatchReport) Delivered() bool {
	return len(r.Matched) > len(r.Failed)
}

// MiddlewareFunc wraps a handler invocation for one rule
type MiddlewareFunc func(ctx context.Context, rule Rule, input json.RawMessage, next Handler) error

// Dispatcher delivers envelopes to every handler whose rule matches
type Dispatcher struct {
	registrations []RuleRegistration
	mu            sync.RWMutex
	logger        *slog.Logger
	metrics       MetricsCollector
	middleware    []MiddlewareFunc
}

// DispatcherOption configures the Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithDispatcherMetrics sets the metrics collector
func WithDispatcherMetrics(metrics MetricsCollector) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithMiddleware adds middleware to the dispatcher
func WithMiddleware(middleware ...MiddlewareFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, middleware...)
	}
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:  slog.Default(),
		metrics: &NoOpMetricsCollector{},
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Register binds a handler to a rule. Rule names must be unique.
func (d *Dispatcher) Register(rule Rule, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, reg := range d.registrations {
		if reg.Rule.Name == rule.Name {
			return fmt.Errorf("rule %s already registered", rule.Name)
		}
	}

	d.registrations = append(d.registrations, RuleRegistration{Rule: rule, Handler: handler})

	d.logger.Info("registered dispatch rule",
		"rule", rule.Name,
		"sources", rule.Sources,
		"detailTypes", rule.DetailTypes,
		"inputPath", rule.InputPath,
	)

	return nil
}

// RegisterFunc registers a function as a handler
func (d *Dispatcher) RegisterFunc(rule Rule, handler HandlerFunc) error {
	return d.Register(rule, handler)
}

// Rules returns a copy of the registered rules
func (d *Dispatcher) Rules() []Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rules := make([]Rule, len(d.registrations))
	for i, reg := range d.registrations {
		rules[i] = reg.Rule
	}
	return rules
}

// Dispatch delivers env to every matching handler concurrently. Handler
// errors and panics are logged and recorded in the report; they never stop
// delivery to the other handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, env *contracts.Envelope) DispatchReport {
	if env == nil {
		d.logger.Warn("dropping nil envelope")
		return DispatchReport{Failed: make(map[string]error)}
	}

	d.mu.RLock()
	var matched []RuleRegistration
	for _, reg := range d.registrations {
		if reg.Rule.Matches(env) {
			matched = append(matched, reg)
		}
	}
	d.mu.RUnlock()

	return d.deliver(ctx, env, matched)
}

// DispatchRule delivers env to the handler of one named rule. Transports
// with a queue per rule use it so that each rule sees an envelope once.
func (d *Dispatcher) DispatchRule(ctx context.Context, ruleName string, env *contracts.Envelope) DispatchReport {
	if env == nil {
		d.logger.Warn("dropping nil envelope", "rule", ruleName)
		return DispatchReport{Failed: make(map[string]error)}
	}

	d.mu.RLock()
	var matched []RuleRegistration
	for _, reg := range d.registrations {
		if reg.Rule.Name == ruleName && reg.Rule.Matches(env) {
			matched = append(matched, reg)
		}
	}
	d.mu.RUnlock()

	return d.deliver(ctx, env, matched)
}

func (d *Dispatcher) deliver(ctx context.Context, env *contracts.Envelope, matched []RuleRegistration) DispatchReport {
	report := DispatchReport{EventID: env.ID, Failed: make(map[string]error)}

	if len(matched) == 0 {
		d.logger.Debug("no rule matched envelope",
			"eventId", env.ID,
			"source", env.Source,
			"detailType", env.DetailType,
		)
		return report
	}

	ctx = ContextWithEnvelope(ctx, env)

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
	)
	for _, reg := range matched {
		report.Matched = append(report.Matched, reg.Rule.Name)

		wg.Add(1)
		go func(reg RuleRegistration) {
			defer wg.Done()

			start := time.Now()
			err := d.invoke(ctx, reg, env)
			d.metrics.RecordDispatch(reg.Rule.Name, time.Since(start), err == nil)

			if err != nil {
				d.logger.Error("handler failed",
					"rule", reg.Rule.Name,
					"eventId", env.ID,
					"source", env.Source,
					"detailType", env.DetailType,
					"error", err,
				)
				failedMu.Lock()
				report.Failed[reg.Rule.Name] = err
				failedMu.Unlock()
			}
		}(reg)
	}
	wg.Wait()

	d.logger.Debug("envelope dispatched",
		"eventId", env.ID,
		"detailType", env.DetailType,
		"handlerCount", len(matched),
		"failedCount", len(report.Failed),
	)

	return report
}

func (d *Dispatcher) invoke(ctx context.Context, reg RuleRegistration, env *contracts.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	input, err := reg.Rule.Project(env)
	if err != nil {
		return fmt.Errorf("failed to project input: %w", err)
	}

	return d.buildMiddlewareChain(reg.Rule, reg.Handler).Handle(ctx, input)
}

// buildMiddlewareChain builds the middleware execution chain
func (d *Dispatcher) buildMiddlewareChain(rule Rule, handler Handler) Handler {
	result := handler
	for i := len(d.middleware) - 1; i >= 0; i-- {
		middleware := d.middleware[i]
		next := result
		result = HandlerFunc(func(ctx context.Context, input json.RawMessage) error {
			return middleware(ctx, rule, input, next)
		})
	}
	return result
}

// LoggingMiddleware logs every handler invocation at debug level
func LoggingMiddleware(logger *slog.Logger) MiddlewareFunc {
	return func(ctx context.Context, rule Rule, input json.RawMessage, next Handler) error {
		start := time.Now()
		err := next.Handle(ctx, input)
		logger.Debug("handler invoked",
			"rule", rule.Name,
			"duration", time.Since(start),
			"success", err == nil,
		)
		return err
	}
}

// TimeoutMiddleware bounds each handler invocation
func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(ctx context.Context, rule Rule, input json.RawMessage, next Handler) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next.Handle(ctx, input)
	}
}

// RetryMiddleware retries a failing handler under policy. Only the failed
// rule is retried; other rules matching the same envelope are unaffected.
func RetryMiddleware(policy reliability.RetryPolicy, logger *slog.Logger) MiddlewareFunc {
	return func(ctx context.Context, rule Rule, input json.RawMessage, next Handler) error {
		attempt := 0
		return reliability.Retry(ctx, policy, func() error {
			attempt++
			err := next.Handle(ctx, input)
			if err != nil {
				logger.Warn("handler attempt failed", "rule", rule.Name, "attempt", attempt, "error", err)
			}
			return err
		})
	}
}
