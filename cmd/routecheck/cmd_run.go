package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/adapters/routes"
	"route-validation-service/internal/adapters/simulation"
	"route-validation-service/internal/config"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"route-validation-service/internal/services"
	"syscall"

	"github.com/spf13/cobra"
)

// newOpener builds the simulator launcher for a run. Tests replace it.
var newOpener = func(cfg *config.Config) ports.SimulationOpener {
	return &simulation.SumoLauncher{
		Binary:          cfg.Simulation.SumoBinary,
		NetFile:         cfg.Simulation.NetFile,
		RoutesFile:      cfg.Simulation.RoutesFile,
		ExtraArgs:       cfg.Simulation.ExtraArgs,
		ConnectAttempts: cfg.Simulation.ConnectAttempts,
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate every route in the routes file",
		Long: `Start SUMO with the network and routes file, inject one probe vehicle per
route and report the routes whose vehicle stalled or did not arrive.

Exits with status 1 when any route failed, unless --fail-on-error=false.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			noStore, _ := cmd.Flags().GetBool("no-store")
			failOnError, _ := cmd.Flags().GetBool("fail-on-error")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			source := routes.NewXMLRouteSource(cfg.Simulation.RoutesFile)

			if dryRun {
				return printDryRun(ctx, cmd, cfg, source, jsonOut)
			}

			req := services.ValidateRoutesRequest{
				MaxSteps:   cfg.Validation.MaxSteps,
				Policy:     cfg.StallPolicy(),
				DepartTime: cfg.Simulation.DepartTime,
				NetFile:    cfg.Simulation.NetFile,
				RoutesFile: cfg.Simulation.RoutesFile,
			}

			report, err := services.ValidateRoutes(ctx, req, source, newOpener(cfg))
			if err != nil {
				return err
			}

			if !noStore {
				if err := storeReport(ctx, cfg, report); err != nil {
					// The run itself succeeded; still print it.
					slog.Error("store report failed", "run_id", report.RunID, "err", err)
				}
			}

			if err := outputReport(cmd.OutOrStdout(), report, jsonOut); err != nil {
				return err
			}

			if failOnError && report.HasErrors() {
				return errRouteFailures
			}
			return nil
		},
	}

	cmd.Flags().String("net", "", "SUMO network file (overrides config)")
	cmd.Flags().String("routes", "", "SUMO routes file (overrides config)")
	cmd.Flags().Int("max-steps", 0, "Simulation step budget (overrides config)")
	cmd.Flags().Int("stall-steps", 0, "Consecutive slow steps that mark a stall (overrides config)")
	cmd.Flags().Float64("stall-speed", 0, "Speed in m/s below which a step counts as slow (overrides config)")
	cmd.Flags().Bool("dry-run", false, "List the routes that would be validated without starting SUMO")
	cmd.Flags().Bool("no-store", false, "Do not store the report")
	cmd.Flags().Bool("fail-on-error", true, "Exit with status 1 when any route failed")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("net") {
		cfg.Simulation.NetFile, _ = flags.GetString("net")
	}
	if flags.Changed("routes") {
		cfg.Simulation.RoutesFile, _ = flags.GetString("routes")
	}
	if flags.Changed("max-steps") {
		cfg.Validation.MaxSteps, _ = flags.GetInt("max-steps")
	}
	if flags.Changed("stall-steps") {
		cfg.Validation.StallStepThreshold, _ = flags.GetInt("stall-steps")
	}
	if flags.Changed("stall-speed") {
		cfg.Validation.StallSpeedThreshold, _ = flags.GetFloat64("stall-speed")
	}
}

func printDryRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, source ports.RouteSource, jsonOut bool) error {
	ids, err := source.ListRoutes(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, map[string]any{
			"dry_run":               true,
			"net_file":              cfg.Simulation.NetFile,
			"routes_file":           cfg.Simulation.RoutesFile,
			"max_steps":             cfg.Validation.MaxSteps,
			"stall_step_threshold":  cfg.Validation.StallStepThreshold,
			"stall_speed_threshold": cfg.Validation.StallSpeedThreshold,
			"routes":                ids,
		})
	}

	fmt.Fprintf(out, "Would validate %d routes from %s on %s\n", len(ids), cfg.Simulation.RoutesFile, cfg.Simulation.NetFile)
	fmt.Fprintf(out, "max steps %d, stall after %d steps below %g m/s\n",
		cfg.Validation.MaxSteps, cfg.Validation.StallStepThreshold, cfg.Validation.StallSpeedThreshold)
	for _, id := range ids {
		fmt.Fprintf(out, " - %s\n", id)
	}
	return nil
}

func storeReport(ctx context.Context, cfg *config.Config, report *domain.ValidationReport) error {
	repo, closeStore, err := repositories.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	if repo == nil {
		return nil
	}
	return repo.SaveReport(ctx, report)
}
