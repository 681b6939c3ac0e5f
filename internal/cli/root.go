// Package cli implements lscctl, an operator tool that works directly
// against the configured store.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/IlyasAtabaev731/lsc-coin/internal/app"
	"github.com/IlyasAtabaev731/lsc-coin/internal/config"
	"github.com/IlyasAtabaev731/lsc-coin/internal/ledger"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

var (
	configPath string

	cfg    *config.Config
	store  storage.Store
	wallet *ledger.Ledger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults to $CONFIG_PATH)")
}

var rootCmd = &cobra.Command{
	Use:           "lscctl",
	Short:         "Inspect and operate an LSC Coin wallet store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}

		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		if store != nil {
			_ = store.Close()
		}
		s, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		store = s
		wallet = app.NewLedger(cfg, store, app.SetupLogger(cfg.Env, cmd.ErrOrStderr()))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return nil
		}
		err := store.Close()
		store, wallet = nil, nil
		return err
	},
}

// Execute runs lscctl with args.
func Execute(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}
