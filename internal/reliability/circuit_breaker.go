package reliability

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing bus until a cool-down has passed
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	halfOpenInUse   int
	lastFailureTime time.Time

	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	halfOpenRequests int
	now              func() time.Time
}

// CircuitBreakerOption configures the circuit breaker
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets the consecutive failures that open the circuit
func WithFailureThreshold(threshold int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = threshold
	}
}

// WithSuccessThreshold sets the successes needed in half-open state to close
func WithSuccessThreshold(threshold int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.successThreshold = threshold
	}
}

// WithTimeout sets how long the circuit stays open
func WithTimeout(timeout time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.timeout = timeout
	}
}

// WithHalfOpenRequests sets the max concurrent trial calls in half-open state
func WithHalfOpenRequests(requests int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.halfOpenRequests = requests
	}
}

// WithName sets the name reported in errors
func WithName(name string) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.name = name
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(options ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:            StateClosed,
		name:             "bus",
		failureThreshold: 5,
		successThreshold: 1,
		timeout:          30 * time.Second,
		halfOpenRequests: 1,
		now:              time.Now,
	}

	for _, opt := range options {
		opt(cb)
	}

	return cb
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		cb.release()
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		nextRetry := cb.lastFailureTime.Add(cb.timeout)
		if cb.now().Before(nextRetry) {
			return cb.refusal(nextRetry)
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.halfOpenInUse = 1
		return nil

	case StateHalfOpen:
		if cb.halfOpenInUse >= cb.halfOpenRequests {
			return cb.refusal(cb.now().Add(time.Second))
		}
		cb.halfOpenInUse++
		return nil

	default:
		return ErrUnknownState
	}
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenInUse > 0 {
		cb.halfOpenInUse--
	}
}

func (cb *CircuitBreaker) refusal(nextRetry time.Time) error {
	return &CircuitBreakerError{
		Name:      cb.name,
		State:     cb.state,
		Failures:  cb.failures,
		Threshold: cb.failureThreshold,
		NextRetry: nextRetry,
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInUse > 0 {
		cb.halfOpenInUse--
	}

	if err != nil {
		cb.failures++
		cb.lastFailureTime = cb.now()
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.failureThreshold {
				cb.state = StateOpen
			}
		case StateHalfOpen:
			cb.state = StateOpen
			cb.successes = 0
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}
