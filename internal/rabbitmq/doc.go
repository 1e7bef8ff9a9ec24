// Package rabbitmq holds the AMQP plumbing behind the RabbitMQ bus transport:
//   - ConnectionManager: one connection with automatic reconnection
//   - Topology: the bus exchange, rule queues and their bindings
//   - Channel: the subset of *amqp.Channel the transport uses
package rabbitmq
