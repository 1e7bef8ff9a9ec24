package reliability

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCircuitOpen        = errors.New("circuit breaker: circuit is open")
	ErrUnknownState       = errors.New("circuit breaker: unknown state")
	ErrMaxRetriesExceeded = errors.New("retry: maximum attempts exceeded")
)

// CircuitBreakerError is returned when the breaker refuses a call
type CircuitBreakerError struct {
	Name      string
	State     State
	Failures  int
	Threshold int
	NextRetry time.Time
}

func (e *CircuitBreakerError) Error() string {
	retryIn := time.Until(e.NextRetry).Round(time.Second)
	return fmt.Sprintf("circuit breaker %s %s: failures=%d/%d, retry in %v",
		e.Name, e.State, e.Failures, e.Threshold, retryIn)
}

// Is lets errors.Is match ErrCircuitOpen
func (e *CircuitBreakerError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RetryError is returned when every attempt failed
type RetryError struct {
	Attempts  int
	Duration  time.Duration
	LastError error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry failed after %d attempts over %v: %v",
		e.Attempts, e.Duration.Round(time.Millisecond), e.LastError)
}

func (e *RetryError) Unwrap() []error {
	return []error{ErrMaxRetriesExceeded, e.LastError}
}

// permanentError marks an error that must not be retried
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Retry gives up immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
