package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IlyasAtabaev731/lsc-coin/internal/jobs"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().StringP("file", "f", "", "write the users blob to this file instead of the backup key")
	restoreCmd.Flags().StringP("file", "f", "", "read the users blob from this file instead of the backup key")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the users blob",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		if file == "" {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			if err := jobs.NewScheduler(cfg.Backup.Schedule, wallet, store, logger).Backup(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Users backed up to %s.\n", storage.UsersBackupKey)
			return nil
		}

		blob, err := wallet.Export(cmd.Context())
		if err != nil {
			return err
		}
		if err := os.WriteFile(file, []byte(blob), 0o600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Users backed up to %s.\n", file)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the users blob with a snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var (
			blob   string
			source = storage.UsersBackupKey
		)
		if file == "" {
			b, err := store.GetItem(cmd.Context(), storage.UsersBackupKey)
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			blob = b
		} else {
			b, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			blob, source = string(b), file
		}

		if err := wallet.Import(cmd.Context(), blob); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Users restored from %s.\n", source)
		return nil
	},
}
