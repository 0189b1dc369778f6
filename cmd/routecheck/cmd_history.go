package main

import (
	"errors"
	"fmt"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/config"
	"route-validation-service/internal/ports"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var errStorageDisabled = errors.New("report storage is disabled (storage.driver is none)")

// openStore opens the configured report repository for a read command.
func openStore(cmd *cobra.Command, cfg *config.Config) (ports.ReportRepository, func() error, error) {
	repo, closeStore, err := repositories.Open(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	if repo == nil {
		_ = closeStore()
		return nil, nil, errStorageDisabled
	}
	return repo, closeStore, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored validation runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			repo, closeStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				res := dto.ListRunsResponse{Runs: make([]dto.RunSummaryResponse, 0, len(runs))}
				for _, run := range runs {
					res.Runs = append(res.Runs, dto.FromRunSummary(run))
				}
				return writeJSON(cmd.OutOrStdout(), res)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No validation runs stored yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTEPS\tOK\tFAILED\tNOT INJECTED\tROUTES FILE")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					run.RunID,
					run.StartedAt.Local().Format(time.DateTime),
					run.StepsRun,
					run.SuccessCount,
					run.ErrorCount,
					run.InjectionFailures,
					run.RoutesFile,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")

	return cmd
}
