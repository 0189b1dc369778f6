package main

import (
	"fmt"
	"route-validation-service/internal/adapters/routes"

	"github.com/spf13/cobra"
)

func newRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the route ids in the routes file",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("routes") {
				cfg.Simulation.RoutesFile, _ = cmd.Flags().GetString("routes")
			}

			ids, err := routes.NewXMLRouteSource(cfg.Simulation.RoutesFile).ListRoutes(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"routes_file": cfg.Simulation.RoutesFile,
					"routes":      ids,
					"count":       len(ids),
				})
			}

			if len(ids) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No routes in %s.\n", cfg.Simulation.RoutesFile)
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().String("routes", "", "SUMO routes file (overrides config)")

	return cmd
}
