package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/glimte/orderflow"
	"github.com/glimte/orderflow/health"
	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
	"github.com/glimte/orderflow/internal/httpapi"
	"github.com/glimte/orderflow/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		consume bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the order API over HTTP",
		Long: `Serve the order API with /metrics, /healthz and /livez endpoints. The
memory transport always runs the consumers in-process; other transports do
so with --consume.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := flags.logger()
			checks := health.NewRegistry()
			checks.SetMetadata("busName", cfg.BusName)
			checks.SetMetadata("transport", cfg.Transport)
			checks.SetMetadata("version", version)

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			client, err := app.Open(ctx, cfg, logger, checks, orderflow.WithMetrics(metrics.NewCollector(reg)))
			if err != nil {
				return err
			}
			defer client.Close()

			if consume || cfg.Transport == config.TransportMemory {
				if err := client.Subscribe(ctx); err != nil {
					return fmt.Errorf("failed to subscribe: %w", err)
				}
			}

			srv := httpapi.NewServer(client, client.Router().Routes(), httpapi.WithServerLogger(logger))
			srv.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			srv.Handle("GET /healthz", health.Handler(checks, 5*time.Second))
			srv.Handle("GET /livez", health.LivenessHandler())

			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("serving order API", "addr", cfg.HTTPAddr, "busName", cfg.BusName, "transport", cfg.Transport)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")
	cmd.Flags().BoolVar(&consume, "consume", false, "Run the consumers in-process")

	return cmd
}
