package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quipkit/quipkit/internal/output"
	"github.com/quipkit/quipkit/internal/quip"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Browse and create folders",
}

var folderGetCmd = &cobra.Command{
	Use:   "get <folder-id>",
	Short: "List a folder's threads and subfolders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		folder, err := client.Folder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, output.FolderDocument(folder))
	},
}

var folderNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")
		color, _ := cmd.Flags().GetString("color")
		members, _ := cmd.Flags().GetStringSlice("member")

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		folder, err := client.NewFolder(cmd.Context(), quip.NewFolderOptions{
			Title:     args[0],
			ParentID:  parent,
			Color:     color,
			MemberIDs: members,
		})
		if err != nil {
			return err
		}
		return render(cmd, output.FolderDocument(folder))
	},
}

func init() {
	folderNewCmd.Flags().String("parent", "", "parent folder id")
	folderNewCmd.Flags().String("color", "", "folder color")
	folderNewCmd.Flags().StringSlice("member", nil, "user ids to share with")

	folderCmd.AddCommand(folderGetCmd, folderNewCmd)
	rootCmd.AddCommand(folderCmd)
}
