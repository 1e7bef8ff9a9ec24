// Package contracts provides the wire types shared by the order event producers,
// the event bus transports and the consumers.
//
// This package defines:
//   - Envelope: an event on its way to or from the bus (source, detail type, detail)
//   - PutEventsEntry: the serialised form handed to a bus publisher
//   - PublishAck: the per-entry acknowledgment returned by a bus
//   - Request and Response: the HTTP-style surface consumed by the router
//   - The error taxonomy: ValidationError, UnroutableRequestError and PublishFailure
//
// Every (Source, DetailType) pair names exactly one detail shape. Consumers rely on
// that pairing when they register dispatch rules.
package contracts
