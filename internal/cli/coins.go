package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/IlyasAtabaev731/lsc-coin/internal/domain/models"
	"github.com/IlyasAtabaev731/lsc-coin/internal/ledger"
)

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(rewardCmd)
	rootCmd.AddCommand(historyCmd)

	registerCmd.Flags().String("role", string(models.RoleUser), "account role: user or staff")
	registerCmd.Flags().StringP("password", "p", "", "password for a user account")
	registerCmd.Flags().String("staff-code", "", "staff code for a staff account")
}

var registerCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleFlag, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		staffCode, _ := cmd.Flags().GetString("staff-code")

		role, ok := models.ParseRole(roleFlag)
		if !ok {
			return ledger.ErrInvalidRole
		}

		user, err := wallet.Register(cmd.Context(), args[0], role, password, staffCode)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s has %s LSC.\n", ledger.MsgRegistrationSuccessful, user.Username, user.Balance)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate USERNAME [AMOUNT]",
	Short: "Generate coins for a user",
	Long: `Generate coins for a user. Without AMOUNT a random amount in the
configured range is generated, subject to the generate cooldown.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			tx  models.Transaction
			err error
		)
		if len(args) == 2 {
			amount, perr := decimal.NewFromString(args[1])
			if perr != nil {
				return ledger.ErrInvalidAmount
			}
			tx, err = wallet.GenerateCoins(cmd.Context(), args[0], amount)
		} else {
			tx, err = wallet.GenerateRandomCoins(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ledger.GeneratedMessage(tx))
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send FROM TO AMOUNT",
	Short: "Send coins; the recipient must accept them",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return ledger.ErrInvalidAmount
		}
		tx, err := wallet.SendCoins(cmd.Context(), args[0], args[1], amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Transaction %s is pending.\n", ledger.SentMessage(tx), tx.ID)
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept USERNAME TRANSACTION_ID",
	Short: "Accept a pending transfer on behalf of its recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := wallet.AcceptCoins(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ledger.AcceptedMessage(tx))
		return nil
	},
}

var rewardCmd = &cobra.Command{
	Use:   "reward USERNAME",
	Short: "Claim the hourly reward for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := wallet.ClaimHourlyReward(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ledger.RewardMessage(tx))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history USERNAME",
	Short: "Show a user's transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		txs, err := wallet.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(txs) == 0 {
			fmt.Fprintln(out, "No transactions yet.")
			return nil
		}
		for _, tx := range txs {
			fmt.Fprintf(out, "%s  %-28s %10s  %-9s %s\n",
				tx.Timestamp.Format("2006-01-02 15:04:05"),
				tx.Type.Title(tx),
				tx.Signed().StringFixed(2),
				tx.Status,
				tx.ID,
			)
		}
		return nil
	},
}
