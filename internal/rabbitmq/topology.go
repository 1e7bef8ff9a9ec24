package rabbitmq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeKind is the exchange type every bus uses
const ExchangeKind = amqp.ExchangeTopic

// keyWord percent-encodes the characters that are significant in topic keys,
// so a source or detail type always occupies exactly one word
var keyWord = strings.NewReplacer("%", "%25", ".", "%2E", "*", "%2A", "#", "%23")

// RoutingKey builds the two-word key an event is published with
func RoutingKey(source, detailType string) string {
	return keyWord.Replace(source) + "." + keyWord.Replace(detailType)
}

// BindingKey builds the topic pattern for a (source, detailType) pair. An
// empty field matches anything.
func BindingKey(source, detailType string) string {
	switch {
	case source == "" && detailType == "":
		return "*.*"
	case source == "":
		return "*." + keyWord.Replace(detailType)
	case detailType == "":
		return keyWord.Replace(source) + ".*"
	default:
		return RoutingKey(source, detailType)
	}
}

// QueueName is the queue a rule consumes from
func QueueName(exchange, rule string) string {
	return exchange + "." + rule
}

// QueueTopology describes one rule queue and its binding keys
type QueueTopology struct {
	Name        string
	BindingKeys []string
}

// Topology is a bus exchange with its rule queues
type Topology struct {
	Exchange string
	Queues   []QueueTopology
}

// Validate checks names before anything is declared
func (t Topology) Validate() error {
	if strings.TrimSpace(t.Exchange) == "" {
		return fmt.Errorf("%w: exchange name cannot be empty", ErrInvalidTopology)
	}
	for _, q := range t.Queues {
		if q.Name == "" {
			return fmt.Errorf("%w: queue name cannot be empty", ErrInvalidTopology)
		}
		if len(q.BindingKeys) == 0 {
			return fmt.Errorf("%w: queue %s has no bindings", ErrInvalidTopology, q.Name)
		}
	}
	return nil
}

// DeclareExchange declares the durable topic exchange of a bus
func DeclareExchange(ch Channel, name string) error {
	if err := ch.ExchangeDeclare(name, ExchangeKind, true, false, false, false, nil); err != nil {
		return &TopologyError{Component: "exchange", Name: name, Op: "declare", Err: err}
	}
	return nil
}

// Declare declares the exchange, every queue and every binding
func (t Topology) Declare(ch Channel) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if err := DeclareExchange(ch, t.Exchange); err != nil {
		return err
	}

	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, nil); err != nil {
			return &TopologyError{Component: "queue", Name: q.Name, Op: "declare", Err: err}
		}
		for _, key := range q.BindingKeys {
			if err := ch.QueueBind(q.Name, key, t.Exchange, false, nil); err != nil {
				return &TopologyError{Component: "binding", Name: q.Name + "<-" + key, Op: "declare", Err: err}
			}
		}
	}

	return nil
}
