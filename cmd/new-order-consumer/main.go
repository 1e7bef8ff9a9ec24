// Command new-order-consumer is the Lambda target of the new-order rule. It
// receives the customer id projected from a NewOrder event.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
)

func main() {
	logger := app.DefaultLogger()
	ctx := context.Background()

	cfg, err := config.LoadFunction(os.Getenv("ORDERFLOW_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	client, err := app.Open(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to create client", "transport", cfg.Transport, "error", err)
		os.Exit(1)
	}

	consumer := client.Consumer()
	lambda.Start(func(ctx context.Context, customerID string) (contracts.Response, error) {
		return consumer.Handle(ctx, customerID), nil
	})
}
