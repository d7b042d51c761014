package cli

import (
	"fmt"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/spf13/cobra"
)

var (
	userName  string
	userEmail string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage board members",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a board member",
	Long: `Register a board member who can connect and be assigned tasks.

Examples:
  taskboard user add --name "Ada Lovelace" --email ada@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		u, err := user.NewUser(userName, userEmail)
		if err != nil {
			return err
		}
		if err := c.Users.Create(cmd.Context(), u); err != nil {
			return fmt.Errorf("failed to add user: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User added: %s\n", u.ID)
		fmt.Fprintf(out, "  name:  %s\n", u.Name)
		fmt.Fprintf(out, "  email: %s\n", u.Email)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List board members with their open task counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		users, err := c.ListUsersHandler.Handle(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, "No users. Add one with: taskboard user add --name NAME --email EMAIL")
			return nil
		}
		fmt.Fprintf(out, "Users (%d):\n", len(users))
		for _, u := range users {
			fmt.Fprintf(out, "  %s  %s <%s>  open: %d\n", u.ID, u.Name, u.Email, u.OpenTaskCount)
		}
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}
