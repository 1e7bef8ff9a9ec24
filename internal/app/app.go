// Package app assembles the order flow from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/schemas"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/glimte/orderflow"
	"github.com/glimte/orderflow/health"
	"github.com/glimte/orderflow/internal/config"
	"github.com/glimte/orderflow/messaging"
	"github.com/glimte/orderflow/orders"
	"github.com/glimte/orderflow/schema"
	ebtransport "github.com/glimte/orderflow/transports/eventbridge"
	kafkatransport "github.com/glimte/orderflow/transports/kafka"
	rabbitmqtransport "github.com/glimte/orderflow/transports/rabbitmq"
)

// NewLogger creates a JSON logger writing to w, the format Lambda and log
// shippers parse
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// DefaultLogger is NewLogger on stderr, at debug level when
// ORDERFLOW_DEBUG is set
func DefaultLogger() *slog.Logger {
	return NewLogger(os.Stderr, os.Getenv("ORDERFLOW_DEBUG") != "")
}

// OpenBus connects the configured transport. Health checks for the
// connection are added to checks when it is not nil.
func OpenBus(ctx context.Context, cfg *config.Config, logger *slog.Logger, checks *health.Registry) (messaging.BusPublisher, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		return messaging.NewMemoryBus(messaging.WithMemoryBusLogger(logger)), nil

	case config.TransportRabbitMQ:
		transport, err := rabbitmqtransport.Dial(ctx, cfg.AMQPURL, cfg.BusName, rabbitmqtransport.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if checks != nil {
			checks.Register(health.NewConnectionChecker("rabbitmq", transport))
		}
		return transport, nil

	case config.TransportKafka:
		return kafkatransport.Dial(cfg.KafkaBrokers, cfg.BusName, kafkatransport.WithLogger(logger)), nil

	case config.TransportEventBridge:
		awsCfg, err := cfg.AWS(ctx)
		if err != nil {
			return nil, err
		}
		return ebtransport.NewPublisher(
			eventbridge.NewFromConfig(awsCfg),
			cfg.BusName,
			ebtransport.WithPublisherLogger(logger),
		), nil
	}

	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

// SchemaRegistry returns the built-in schemas, updated from the AWS
// schema registry when one is configured. A registry that cannot be
// reached leaves the built-in schemas in place.
func SchemaRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*schema.Registry, error) {
	registry, err := schema.NewBuiltinRegistry(
		schema.WithStrictMode(cfg.StrictSchemas),
		schema.WithRegistryLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	if cfg.SchemaRegistry == "" {
		return registry, nil
	}

	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		return nil, err
	}
	loader := schema.NewAWSLoader(schemas.NewFromConfig(awsCfg), cfg.SchemaRegistry, schema.WithLoaderLogger(logger))
	for _, remote := range schema.DiscoveredSchemas() {
		if err := loader.LoadInto(ctx, registry, remote); err != nil {
			logger.Warn("keeping built-in schema", "schemaName", remote.SchemaName, "error", err)
		}
	}

	return registry, nil
}

// WaitNotifier creates the notifier when a topic is configured
func WaitNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*orders.WaitNotifier, error) {
	if cfg.TopicArn == "" {
		return nil, nil
	}
	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		return nil, err
	}
	return orders.NewWaitNotifier(sns.NewFromConfig(awsCfg), cfg.TopicArn, orders.WithNotifierLogger(logger)), nil
}

// NewClient assembles a client over bus from cfg
func NewClient(ctx context.Context, cfg *config.Config, bus messaging.BusPublisher, logger *slog.Logger, options ...orderflow.ClientOption) (*orderflow.Client, error) {
	registry, err := SchemaRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := WaitNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []orderflow.ClientOption{
		orderflow.WithLogger(logger),
		orderflow.WithDetailValidator(registry),
		orderflow.WithValidationStatus(cfg.ValidationStatus),
	}
	if notifier != nil {
		opts = append(opts, orderflow.WithWaitNotifier(notifier))
	}

	return orderflow.NewClient(bus, cfg.BusName, append(opts, options...)...)
}

// Open connects the configured transport and assembles a client over it.
// The bus is closed again when the client cannot be built.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, checks *health.Registry, options ...orderflow.ClientOption) (*orderflow.Client, error) {
	bus, err := OpenBus(ctx, cfg, logger, checks)
	if err != nil {
		return nil, fmt.Errorf("failed to open bus: %w", err)
	}
	return clientOver(ctx, cfg, bus, logger, options...)
}

func clientOver(ctx context.Context, cfg *config.Config, bus messaging.BusPublisher, logger *slog.Logger, options ...orderflow.ClientOption) (*orderflow.Client, error) {
	client, err := NewClient(ctx, cfg, bus, logger, options...)
	if err != nil {
		if closer, ok := bus.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil {
				logger.Warn("failed to close bus", "transport", cfg.Transport, "error", cerr)
			}
		}
		return nil, err
	}
	return client, nil
}
