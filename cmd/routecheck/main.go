package main

import (
	"errors"
	"fmt"
	"os"
	"route-validation-service/internal/config"
	"route-validation-service/internal/platform/logging"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

// errRouteFailures makes the process exit non-zero after a complete report.
var errRouteFailures = errors.New("one or more routes failed validation")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRouteFailures) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "routecheck",
		Short: "Validate SUMO routes by driving a probe vehicle along each one",
		Long: `routecheck injects one probe vehicle per route into a SUMO simulation and
watches it step by step. A route is broken when its vehicle stalls or does
not arrive within the step budget.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRoutesCmd(),
		newHistoryCmd(),
		newShowCmd(),
	)

	return rootCmd
}

// loadConfig reads the configuration named by --config and installs the logger.
// Logs go to stderr so that stdout carries only the command output.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cmd.ErrOrStderr())
	return cfg, nil
}
