// Package schema validates event details against schemas registered per
// (source, detailType) pair.
//
// Schemas are versioned with semantic versions. A lookup picks the highest
// version satisfying a constraint, so producers can pin "~1" while newer
// major versions are rolled out. Two kinds are supported, mirroring the
// EventBridge Schema Registry: JSON Schema draft 4 documents and OpenAPI 3
// documents with a component reference naming the event.
//
// Basic usage:
//
//	registry, err := schema.NewBuiltinRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	publisher := messaging.NewEventPublisher(bus,
//	    messaging.WithDetailValidator(registry),
//	)
//
// Schemas stored in an EventBridge registry are pulled in with AWSLoader.
//
// Validation is opt-in per pair: a detail whose pair has no schema passes
// unless the registry is created WithStrictMode(true).
package schema
