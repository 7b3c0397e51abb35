package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/cache"
	"github.com/zatekoja/dentalprotocols/backend/internal/adapters/database"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/redis"
)

func newCatalogCmd() *cobra.Command {
	catalog := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the composite shade catalog",
	}

	var prefix string
	flush := &cobra.Command{
		Use:   "flush <product line>...",
		Short: "Drop cached shade lists after the catalog table changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redisClient, err := redis.NewClient(&cfg.Redis)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			if err := database.InvalidateShadeCatalog(cmd.Context(), cache.NewRedisAdapter(redisClient, prefix), args...); err != nil {
				return fmt.Errorf("failed to flush shade cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flushed %d product line(s)\n", len(args))
			return nil
		},
	}
	flush.Flags().StringVar(&prefix, "prefix", "dental", "Cache key prefix used by the API")

	catalog.AddCommand(flush)
	return catalog
}
