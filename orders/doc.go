// Package orders holds the order workflow built on the messaging package:
// the producer routing table, the new-order consumer, the order total
// calculator and the wait notifier, plus the dispatch rules that connect them.
//
// A producer answers HTTP-style requests:
//
//	router := messaging.NewRouter(publisher, orders.Routes(busName))
//	resp := router.Handle(ctx, req)
//
// Consumers are bound to a dispatcher with the default rules:
//
//	err := orders.RegisterDefaultRules(dispatcher, consumer, notifier)
package orders
