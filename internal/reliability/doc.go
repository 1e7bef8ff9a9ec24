// Package reliability provides the optional retry and circuit breaker wrappers
// around bus publish calls.
//
// Neither is enabled by default: a publish is attempted exactly once and
// delivery guarantees are left to the bus. Callers that want more can opt in:
//
//	publisher := messaging.NewEventPublisher(bus,
//	    messaging.WithRetryPolicy(reliability.NewExponentialBackoff(100*time.Millisecond, 2*time.Second, 2.0, 3)),
//	    messaging.WithCircuitBreaker(reliability.NewCircuitBreaker(reliability.WithFailureThreshold(5))),
//	)
//
// Errors marked with Permanent are never retried.
package reliability
