package main

import (
	"fmt"

	pgStorage "adwallet/internal/adapter/storage/postgres"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending PostgreSQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		pool, err := pgStorage.NewPool(cmd.Context(), cfg.Database, log)
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pool.Close()

		n, err := pgStorage.Migrate(cmd.Context(), pool, log)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Int("applied", n).Msg("migrations complete")
		return nil
	},
}
