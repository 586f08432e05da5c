package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familyxp/internal/backup"
)

var backupKeep int

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted database snapshot and prune old ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := openBackup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		snap, err := mgr.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", snap.Key, snap.Size)

		if backupKeep > 0 {
			n, err := mgr.Prune(cmd.Context(), backupKeep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d\n", n)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := openBackup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		snaps, err := mgr.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range snaps {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", s.Key, s.Size)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <key> <path>",
	Short: "Download and decrypt a snapshot to a new database file",
	Long: `Writes the snapshot to <path>, which must not exist. Stop the server and
point database.path at the restored file to switch over.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := openBackup(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := mgr.Restore(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	backupCmd.Flags().IntVar(&backupKeep, "keep", 14, "Snapshots to keep after upload (0 keeps all)")
	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd, restoreCmd)
}

func openBackup(cmd *cobra.Command) (*backup.Manager, func(), error) {
	cfg, db, logger, err := bootstrap(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	mgr, err := backup.NewManager(cfg.Backup, db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return mgr, func() { db.Close() }, nil
}
