package main

import (
	"errors"
	"fmt"
	"route-validation-service/internal/domain"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored validation report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			repo, closeStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := repo.GetReport(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrRunNotFound) {
				return fmt.Errorf("no stored run with id %q", args[0])
			}
			if err != nil {
				return err
			}

			return outputReport(cmd.OutOrStdout(), report, jsonOut)
		},
	}
}
