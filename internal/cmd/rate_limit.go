package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quipkit/quipkit/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect rate limit state",
}

var rateLimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current quota and the delay the next request would wait",
	Long: `Show the current quota per window. Quota is only known from response
headers, so a lightweight request (the current user) is made first unless
--no-probe is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noProbe, _ := cmd.Flags().GetBool("no-probe")

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		if !noProbe {
			if _, err := client.CurrentUser(cmd.Context()); err != nil {
				return err
			}
		}
		return render(cmd, output.RateLimitDocument(client.Coordinator.Status()))
	},
}

func init() {
	rateLimitStatusCmd.Flags().Bool("no-probe", false, "do not make a request before reporting")

	rateLimitCmd.AddCommand(rateLimitStatusCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
