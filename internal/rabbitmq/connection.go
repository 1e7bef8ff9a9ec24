package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/orderflow/internal/reliability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the bus transport uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// ChannelProvider opens channels
type ChannelProvider interface {
	Channel() (Channel, error)
}

// Dialer opens an AMQP connection
type Dialer func(url string) (*amqp.Connection, error)

// ConnectionManager manages the RabbitMQ connection with automatic reconnection
type ConnectionManager struct {
	url         string
	dial        Dialer
	conn        *amqp.Connection
	mu          sync.RWMutex
	backoff     *reliability.ExponentialBackoff
	maxRetries  int
	dialTimeout time.Duration
	logger      *slog.Logger
	notifyClose chan *amqp.Error
	isConnected bool
	done        chan struct{}
	closeOnce   sync.Once
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithConnectionLogger sets the logger
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithReconnectDelay sets the first reconnection delay. Later attempts back
// off exponentially up to five minutes.
func WithReconnectDelay(delay time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.backoff = reliability.NewExponentialBackoff(delay, 5*time.Minute, 2, 0)
	}
}

// WithMaxRetries sets the maximum number of reconnection attempts; negative
// means unlimited
func WithMaxRetries(retries int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.maxRetries = retries
	}
}

// WithDialer replaces amqp.Dial
func WithDialer(dial Dialer) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.dial = dial
	}
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:         url,
		dial:        amqp.Dial,
		backoff:     reliability.NewExponentialBackoff(5*time.Second, 5*time.Minute, 2, 0),
		maxRetries:  -1,
		dialTimeout: 30 * time.Second,
		logger:      slog.Default(),
		done:        make(chan struct{}),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Connect establishes the initial connection
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isConnected {
		return nil
	}

	conn, err := cm.dialWithTimeout(ctx)
	if err != nil {
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
			Attempts:  1,
		}
	}

	cm.attach(conn)
	cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))

	go cm.handleReconnect(cm.notifyClose)

	return nil
}

// Channel opens a channel on the current connection
func (cm *ConnectionManager) Channel() (Channel, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.isConnected || cm.conn == nil {
		return nil, ErrConnectionNotReady
	}
	if cm.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}

	ch, err := cm.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// IsConnected returns the connection status
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isConnected
}

// Close closes the connection and stops reconnecting
func (cm *ConnectionManager) Close() error {
	cm.closeOnce.Do(func() { close(cm.done) })

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.isConnected = false
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}
	return nil
}

// attach must be called with mu held
func (cm *ConnectionManager) attach(conn *amqp.Connection) {
	cm.conn = conn
	cm.isConnected = true
	cm.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (cm *ConnectionManager) dialWithTimeout(ctx context.Context) (*amqp.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, cm.dialTimeout)
	defer cancel()

	type result struct {
		conn *amqp.Connection
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := cm.dial(cm.url)
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ErrConnectionTimeout
	}
}

// handleReconnect waits for the connection to drop and reconnects
func (cm *ConnectionManager) handleReconnect(notifyClose chan *amqp.Error) {
	for {
		select {
		case err, ok := <-notifyClose:
			select {
			case <-cm.done:
				return
			default:
			}
			if ok && err != nil {
				cm.logger.Error("connection closed", "error", err)
			}

			cm.mu.Lock()
			cm.isConnected = false
			cm.conn = nil
			cm.mu.Unlock()

			next, ok := cm.reconnect()
			if !ok {
				return
			}
			notifyClose = next

		case <-cm.done:
			cm.logger.Info("connection manager shutting down")
			return
		}
	}
}

// reconnect dials until it succeeds, the retry budget runs out or the
// manager is closed
func (cm *ConnectionManager) reconnect() (chan *amqp.Error, bool) {
	start := time.Now()

	for attempt := 0; cm.maxRetries < 0 || attempt < cm.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(cm.backoff.NextDelay(attempt - 1)):
			case <-cm.done:
				return nil, false
			}
		}

		cm.logger.Info("attempting to reconnect", "attempt", attempt+1, "maxRetries", cm.maxRetries)

		conn, err := cm.dialWithTimeout(context.Background())
		if err != nil {
			cm.logger.Error("reconnection failed", "error", err, "attempt", attempt+1)
			continue
		}

		cm.mu.Lock()
		select {
		case <-cm.done:
			cm.mu.Unlock()
			conn.Close()
			return nil, false
		default:
		}
		cm.attach(conn)
		notifyClose := cm.notifyClose
		cm.mu.Unlock()

		cm.logger.Info("successfully reconnected to RabbitMQ",
			"attempts", attempt+1,
			"duration", time.Since(start))
		return notifyClose, true
	}

	cm.logger.Error("max reconnection attempts reached",
		"error", &ConnectionError{
			Op:        "reconnect",
			URL:       SanitizeURL(cm.url),
			Err:       ErrMaxRetriesExceeded,
			Timestamp: time.Now(),
			Attempts:  cm.maxRetries,
		},
		"duration", time.Since(start))
	return nil, false
}

var _ Channel = (*amqp.Channel)(nil)
