// Package eventbridge runs the order event flow on Amazon EventBridge.
//
// Publisher implements messaging.BusPublisher over PutEvents. RuleManager
// registers dispatch rules as EventBridge rules whose single target receives
// the rule's input projection, and removes them again.
package eventbridge
