package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/database"
	"github.com/zatekoja/dentalprotocols/backend/internal/evaluation"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/dentalprotocols/backend/internal/safety"
)

func newEvalCmd() *cobra.Command {
	var (
		rejectLow bool
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "eval <golden.json>",
		Short: "Replay golden completions through output validation and safety rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := evaluation.LoadGoldenCases(args[0])
			if err != nil {
				return err
			}
			if err := evaluation.ValidateGoldenCases(cases); err != nil {
				return err
			}

			processor := safety.NewProcessor(nil)
			if !offline {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				pgClient, err := postgres.NewClient(&cfg.Database)
				if err != nil {
					return fmt.Errorf("failed to connect to database (use --offline to skip the shade catalog): %w", err)
				}
				defer pgClient.Close()
				processor = safety.NewProcessor(database.NewShadeCatalogAdapter(pgClient))
			}

			runner := evaluation.NewRunner(processor, evaluation.NewGuardrails(evaluation.GuardrailConfig{
				RejectLowConfidence: rejectLow,
			}))
			summary, err := runner.Run(cmd.Context(), cases)
			if err != nil {
				return err
			}
			return outputJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVar(&rejectLow, "reject-low-confidence", false, "Flag protocols the model marked as low confidence")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip shade catalog normalization")
	return cmd
}
