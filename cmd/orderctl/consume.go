package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/glimte/orderflow"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
	"github.com/glimte/orderflow/internal/reliability"
	"github.com/glimte/orderflow/messaging"
	"github.com/spf13/cobra"
)

func newConsumeCommand(flags *globalFlags) *cobra.Command {
	var (
		retries    int
		retryDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume bus events with the default dispatch rules",
		Long: `Subscribe to a RabbitMQ or Kafka bus and run the new-order consumer, plus
the wait notifier when ORDERFLOW_TOPIC_ARN is set, until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Transport != config.TransportRabbitMQ && cfg.Transport != config.TransportKafka {
				return fmt.Errorf("consume needs the rabbitmq or kafka transport, got %s", cfg.Transport)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := flags.logger()
			var opts []orderflow.ClientOption
			if retries > 0 {
				policy := reliability.NewFixedDelay(retryDelay, retries)
				opts = append(opts, orderflow.WithDispatchMiddleware(messaging.RetryMiddleware(policy, logger)))
			}

			client, err := app.Open(ctx, cfg, logger, nil, opts...)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}

			for _, rule := range client.Dispatcher().Rules() {
				logger.Info("consuming", "rule", rule.Name, "busName", cfg.BusName, "transport", cfg.Transport)
			}

			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "handler-retries", 0, "Retries for a failing handler before the event is acknowledged")
	cmd.Flags().DurationVar(&retryDelay, "handler-retry-delay", time.Second, "Delay between handler retries")

	return cmd
}
