package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/rabbitmq"
	"github.com/glimte/orderflow/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind).Error(0)
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name)
	return amqp.Queue{Name: name}, a.Error(0)
}

func (m *mockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return m.Called(name, key, exchange).Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	a := m.Called(queue, consumer)
	deliveries, _ := a.Get(0).(chan amqp.Delivery)
	return deliveries, a.Error(1)
}

func (m *mockChannel) Close() error {
	m.Called()
	return nil
}

type staticProvider struct {
	channels []rabbitmq.Channel
	opened   int
}

func (p *staticProvider) Channel() (rabbitmq.Channel, error) {
	ch := p.channels[p.opened%len(p.channels)]
	p.opened++
	return ch, nil
}

type mockAcknowledger struct {
	mock.Mock
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	return m.Called(tag, multiple).Error(0)
}

func (m *mockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return m.Called(tag, multiple, requeue).Error(0)
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

type recordingDispatcher struct {
	rules     []messaging.Rule
	delivered chan delivered
}

type delivered struct {
	rule string
	env  *contracts.Envelope
}

func (d *recordingDispatcher) Rules() []messaging.Rule {
	return d.rules
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, env *contracts.Envelope) messaging.DispatchReport {
	d.delivered <- delivered{env: env}
	return messaging.DispatchReport{EventID: env.ID}
}

func (d *recordingDispatcher) DispatchRule(ctx context.Context, rule string, env *contracts.Envelope) messaging.DispatchReport {
	d.delivered <- delivered{rule: rule, env: env}
	return messaging.DispatchReport{EventID: env.ID, Matched: []string{rule}}
}

func mustJSON(v interface{}) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
