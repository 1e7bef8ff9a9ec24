// Command producer is the API Gateway Lambda that turns order requests into
// bus events.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
	"github.com/glimte/orderflow/internal/httpapi"
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

	lambda.Start(httpapi.LambdaHandler(client))
}
