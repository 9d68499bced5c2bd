package main

import (
	"github.com/spf13/cobra"

	"mediavault/internal/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema for the configured driver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.db.Close()

		migrated, err := bootstrap.Migrate(cmd.Context(), e.db)
		if err != nil {
			return err
		}
		if !migrated {
			cmd.Printf("driver %s has no schema\n", e.cfg.Database.Driver)
			return nil
		}
		cmd.Printf("schema ready for %s\n", e.cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
