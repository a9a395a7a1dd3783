package main

import (
	"github.com/spf13/cobra"

	"github.com/hcunanan79/COREcare-access/pkg/database"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if rollbackSteps > 0 {
			return database.RollbackMigrations(sqlDB, rollbackSteps, logger)
		}
		return database.RunMigrations(sqlDB, logger)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "down", 0, "roll back the given number of migrations instead of applying")
	rootCmd.AddCommand(migrateCmd)
}
