package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familyxp/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and print the schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, db, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		v, err := database.Version(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
