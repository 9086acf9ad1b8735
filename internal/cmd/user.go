package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/output"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Look up users",
}

var userMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the user the token belongs to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		user, err := client.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, output.UsersDocument([]*core.User{user}))
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get <user-id> [user-id...]",
	Short: "Show users by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		users := make([]*core.User, 0, len(args))
		for _, id := range args {
			user, err := client.User(cmd.Context(), id)
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return render(cmd, output.UsersDocument(users))
	},
}

func init() {
	userCmd.AddCommand(userMeCmd, userGetCmd)
	rootCmd.AddCommand(userCmd)
}
