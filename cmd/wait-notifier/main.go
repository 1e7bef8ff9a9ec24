// Command wait-notifier is the Lambda target of the wait-notifier rule. It
// announces the wait on an SNS topic and then waits.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
)

func main() {
	logger := app.DefaultLogger()

	cfg, err := config.LoadFunction(os.Getenv("ORDERFLOW_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	notifier, err := app.WaitNotifier(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}
	if notifier == nil {
		logger.Error("ORDERFLOW_TOPIC_ARN is required")
		os.Exit(1)
	}

	lambda.Start(notifier.Notify)
}
