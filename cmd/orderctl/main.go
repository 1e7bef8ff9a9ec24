// Command orderctl runs the order flow outside Lambda and manages its
// EventBridge rules.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/glimte/orderflow/internal/app"
	"github.com/glimte/orderflow/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	transport  string
	busName    string
	debug      bool
}

func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader(g.configPath)
	if cmd.Flags().Changed("transport") {
		loader.Set("transport", g.transport)
	}
	if cmd.Flags().Changed("bus") {
		loader.Set("bus_name", g.busName)
	}
	return loader.Load()
}

func (g *globalFlags) logger() *slog.Logger {
	return app.NewLogger(os.Stderr, g.debug)
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "orderctl",
		Short: "Route order requests onto an event bus and run its consumers",
		Long: `orderctl serves the order API over HTTP, consumes bus events with the
default dispatch rules, and registers those rules on EventBridge.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("ORDERFLOW_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flags.transport, "transport", "t", "", "Bus transport: memory, rabbitmq, kafka or eventbridge")
	rootCmd.PersistentFlags().StringVarP(&flags.busName, "bus", "b", "", "Event bus name")
	rootCmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newServeCommand(flags),
		newRouteCommand(flags),
		newConsumeCommand(flags),
		newRulesCommand(flags),
	)

	return rootCmd
}

// parsePairs turns key=value arguments into a map
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}

// mergePairs copies base and then overrides, later keys winning
func mergePairs(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
