package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/sqldb"
	"github.com/JoeShih716/go-credit-ledger/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply SQL schema migrations and seed accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runMigrations(cfg)
		},
	}
}

func runMigrations(cfg *config.Config) error {
	if cfg.Database.Driver == config.DriverMemory {
		return fmt.Errorf("driver %q has no schema to migrate", cfg.Database.Driver)
	}
	if err := sqldb.Migrate(cfg.Database); err != nil {
		return err
	}
	log.Printf("Migrations applied (%s)", cfg.Database.Driver)
	return nil
}
