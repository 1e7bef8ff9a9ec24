package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
	"github.com/glimte/orderflow/messaging"
	"github.com/spf13/cobra"
)

// routeResult is what the route command prints
type routeResult struct {
	StatusCode int                   `json:"statusCode"`
	Body       json.RawMessage       `json:"body"`
	Events     []*contracts.Envelope `json:"events"`
}

func newRouteCommand(flags *globalFlags) *cobra.Command {
	var (
		pathParams  []string
		queryParams []string
	)

	cmd := &cobra.Command{
		Use:   "route <method> <resource>",
		Short: "Route one request against an in-memory bus",
		Long: `Route one request through the full flow on an in-memory bus and print the
response with every event published, including those the consumers emit.`,
		Example: `  orderctl route POST /orders --query customerId=c1
  orderctl route PUT '/orders/{orderId}' --param orderId=42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parsePairs(pathParams)
			if err != nil {
				return err
			}
			query, err := parsePairs(queryParams)
			if err != nil {
				return err
			}

			loader := config.NewLoader(flags.configPath)
			loader.Set("transport", config.TransportMemory)
			if cmd.Flags().Changed("bus") {
				loader.Set("bus_name", flags.busName)
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			req := &contracts.Request{
				Method:                strings.ToUpper(args[0]),
				Resource:              args[1],
				Path:                  args[1],
				PathParameters:        params,
				QueryStringParameters: query,
			}
			return runRoute(cmd.Context(), cfg, flags.logger(), req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVarP(&pathParams, "param", "p", nil, "Path parameter as name=value")
	cmd.Flags().StringArrayVarP(&queryParams, "query", "q", nil, "Query parameter as name=value")

	return cmd
}

func runRoute(ctx context.Context, cfg *config.Config, logger *slog.Logger, req *contracts.Request, w io.Writer) error {
	bus := messaging.NewMemoryBus(messaging.WithMemoryBusLogger(logger))

	client, err := app.NewClient(ctx, cfg, bus, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Subscribe(ctx); err != nil {
		return err
	}

	resp := client.Handle(ctx, req)

	result := routeResult{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(resp.Body),
		Events:     bus.Published(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
