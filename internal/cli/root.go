package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aruniverse/rushstack/internal/config"
	"github.com/aruniverse/rushstack/internal/graph"
)

var (
	cfgPath  string
	debug    bool
	jsonLogs bool
	quiet    bool
	version  = "v0.1.0"

	rootCmd = &cobra.Command{
		Use:   "rushstack",
		Short: "A build orchestrator for graphs of interdependent shell operations",
		Long: `rushstack executes a graph of shell operations declared in rushstack.json.
It validates the dependency graph, ranks operations by critical path so the
longest chains start first, and runs them with a pool of concurrent workers.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logrus.SetLevel(logrus.DebugLevel)
				logrus.Debug("Debug logging enabled")
			} else if quiet {
				logrus.SetLevel(logrus.ErrorLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}

			if jsonLogs {
				logrus.SetFormatter(&logrus.JSONFormatter{})
			} else {
				logrus.SetFormatter(&logrus.TextFormatter{
					FullTimestamp: true,
				})
			}
		},
	}
)

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (default rushstack.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig loads the merged configuration, honoring the --config override.
func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load("", cfgPath)
	}
	return config.LoadDefault()
}

// buildGraph turns the config's operation declarations into a wired graph.
func buildGraph(cfg *config.Config) ([]*graph.Operation, *graph.Builder, error) {
	if len(cfg.Operations) == 0 {
		return nil, nil, fmt.Errorf("no operations defined; add an \"operations\" section to the config")
	}

	builder := graph.NewBuilder()
	for _, def := range cfg.Operations {
		if err := builder.Add(def.Name, def.Command, def.Weight, def.DependsOn...); err != nil {
			return nil, nil, err
		}
	}

	ops, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}

	for _, def := range cfg.Operations {
		if len(def.Locks) == 0 {
			continue
		}
		if op, ok := builder.Get(def.Name); ok {
			op.Locks = def.Locks
		}
	}

	return ops, builder, nil
}
