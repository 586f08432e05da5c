package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familyxp/internal/points"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry pass and exit",
	Long: `Auto-approves completions whose review window has passed and refunds
screen-time use requests nobody answered. Useful from cron when the server
is not running.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, db, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := points.New(db, cfg, points.Options{Logger: logger})
	if err != nil {
		return err
	}
	res, err := svc.ProcessExpired(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "auto-approved: %d\nrefunded: %d\n", res.AutoApproved, res.Refunded)
	return err
}
