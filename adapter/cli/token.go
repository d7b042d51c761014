package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage access tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed token for a board member",
	Long: `Issue a signed token that authenticates a board member on /ws and
the read API. The token is printed on its own line.

Examples:
  taskboard token issue --user 0b6c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		id, err := uuid.Parse(tokenUser)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		u, err := c.Users.FindByID(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}
		token, err := c.Issuer.Issue(u)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenUser, "user", "", "user id")
	_ = tokenIssueCmd.MarkFlagRequired("user")

	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
