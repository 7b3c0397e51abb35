package main

import (
	"github.com/spf13/cobra"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/database"
	"github.com/zatekoja/dentalprotocols/backend/internal/application/services"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
)

func newRefundsCmd() *cobra.Command {
	refunds := &cobra.Command{
		Use:   "refunds",
		Short: "Manage credit refunds that failed inline",
	}

	var limit int
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Replay pending credit refunds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pgClient, err := postgres.NewClient(&cfg.Database)
			if err != nil {
				return err
			}
			defer pgClient.Close()

			sweeper := services.NewRefundSweeper(database.NewCreditAdapter(pgClient), services.DefaultSweepRetry())
			result, err := sweeper.Sweep(cmd.Context(), limit)
			if err != nil {
				return err
			}

			observability.GetLogger().Info().
				Int("scanned", result.Scanned).
				Int("resolved", result.Resolved).
				Int("failed", result.Failed).
				Msg("Refund sweep finished")
			return outputJSON(cmd.OutOrStdout(), result)
		},
	}
	sweep.Flags().IntVar(&limit, "limit", 100, "Maximum number of failed refunds to replay")

	refunds.AddCommand(sweep)
	return refunds
}
