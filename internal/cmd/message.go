package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/output"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Read and post thread messages",
}

var messageListCmd = &cobra.Command{
	Use:   "list <thread-id>",
	Short: "List recent messages, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		before, _ := cmd.Flags().GetInt64("max-created-usec")

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		messages, err := client.Messages(cmd.Context(), args[0], count, before)
		if err != nil {
			return err
		}
		return render(cmd, output.MessagesDocument(messages))
	},
}

var messageNewCmd = &cobra.Command{
	Use:   "new <thread-id> <content>",
	Short: "Post a message to a thread",
	Long:  "Post a message to a thread. Content may be @path to read a file or - for stdin.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd, args[1])
		if err != nil {
			return err
		}

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		message, err := client.NewMessage(cmd.Context(), args[0], content)
		if err != nil {
			return err
		}
		return render(cmd, output.MessagesDocument([]*core.Message{message}))
	},
}

func init() {
	messageListCmd.Flags().Int("count", 25, "number of messages to list")
	messageListCmd.Flags().Int64("max-created-usec", 0, "only messages created before this timestamp (microseconds)")

	messageCmd.AddCommand(messageListCmd, messageNewCmd)
	rootCmd.AddCommand(messageCmd)
}
