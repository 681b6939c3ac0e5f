package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/IlyasAtabaev731/lsc-coin/internal/domain/models"
)

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersShowCmd)

	rootCmd.AddCommand(staffCmd)
	staffCmd.AddCommand(staffListCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect registered accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every account with its role and balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := wallet.Users(cmd.Context())
		if err != nil {
			return err
		}
		printUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

var usersShowCmd = &cobra.Command{
	Use:   "show USERNAME",
	Short: "Show one account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := wallet.GetUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Username:     %s\n", user.Username)
		fmt.Fprintf(out, "Role:         %s\n", user.Role)
		fmt.Fprintf(out, "Balance:      %s LSC\n", user.Balance)
		fmt.Fprintf(out, "Transactions: %d\n", len(user.Transactions))
		if user.LastRewardClaimed != nil {
			fmt.Fprintf(out, "Last reward:  %s\n", user.LastRewardClaimed.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Inspect staff accounts",
}

var staffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staff members",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		staff, err := wallet.StaffMembers(cmd.Context())
		if err != nil {
			return err
		}
		printUsers(cmd.OutOrStdout(), staff)
		return nil
	},
}

func printUsers(w io.Writer, users []models.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No accounts.")
		return
	}
	fmt.Fprintf(w, "%-20s %-6s %s\n", "USERNAME", "ROLE", "BALANCE")
	for _, u := range users {
		fmt.Fprintf(w, "%-20s %-6s %s\n", u.Username, u.Role, u.Balance)
	}
}
