// Package messaging turns inbound order requests into bus events and delivers bus
// events to consumers.
//
// This package implements both sides of the event flow:
//   - Router: maps an inbound request onto exactly one event envelope using a fixed,
//     ordered routing table, publishes it and answers with a uniform response
//   - EventPublisher: serialises an envelope and makes a single bus publish call
//   - Dispatcher: matches envelopes against dispatch rules on (source, detail type)
//     and invokes every matching handler independently
//   - MemoryBus: an in-process bus used for local runs and tests
//
// Example usage:
//
//	bus := messaging.NewMemoryBus()
//	publisher := messaging.NewEventPublisher(bus)
//	router := messaging.NewRouter(publisher, orders.Routes("orders"))
//
//	dispatcher := messaging.NewDispatcher()
//	err := dispatcher.Register(messaging.Rule{
//		Name:        "new-order",
//		Sources:     []string{contracts.SourceProducer},
//		DetailTypes: []string{contracts.DetailTypeNewOrder},
//		InputPath:   "$.detail.customerId",
//	}, consumer)
//	err = bus.Subscribe(ctx, dispatcher)
//
//	resp := router.Handle(ctx, contracts.Request{
//		Method:                "POST",
//		Resource:              "/orders",
//		QueryStringParameters: map[string]string{"customerId": "c1"},
//	})
//
// The router never returns an error: failures become a 500 response whose body
// carries the error text. Dispatch failures are logged and reported, never
// propagated to other handlers.
package messaging
