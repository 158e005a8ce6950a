package main

import (
	"leaseprotect/internal/adapter/repository/sqlstore"
	"leaseprotect/internal/infrastructure/db"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), !cfg.IsProduction(), log)
			if err != nil {
				return err
			}
			if err := sqlstore.AutoMigrate(gdb); err != nil {
				return err
			}
			log.Info("schema migrated", "driver", cfg.DBDriver)
			return nil
		},
	}
}
