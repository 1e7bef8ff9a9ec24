// Command calculator is a Lambda returning the total of a MyEvent order
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
	"github.com/glimte/orderflow/orders"
)

func main() {
	logger := app.DefaultLogger()

	cfg, err := config.LoadFunction(os.Getenv("ORDERFLOW_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	registry, err := app.SchemaRegistry(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to load schemas", "error", err)
		os.Exit(1)
	}

	calculator := orders.NewCalculator(
		orders.WithCalculatorLogger(logger),
		orders.WithEventValidator(registry),
	)

	lambda.Start(calculator.Calculate)
}
