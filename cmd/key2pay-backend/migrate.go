package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"key2pay-backend/internal/infrastructure/repo"
)

func migrateCmd() *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the order store schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db-driver") {
				cfg.DBDriver = driver
			}
			if cmd.Flags().Changed("database-url") {
				cfg.DatabaseURL = dsn
			}
			if cfg.DBDriver == "memory" {
				return fmt.Errorf("migrate needs a SQL store, set KEY2PAY_DB_DRIVER or --db-driver")
			}
			db, err := repo.Open(cfg.DBDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repo.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "db-driver", "postgres", "SQL driver: postgres or pgx")
	cmd.Flags().StringVar(&dsn, "database-url", "", "PostgreSQL connection string")
	return cmd
}
