package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quipkit/quipkit/internal/core"
	apperrors "github.com/quipkit/quipkit/internal/errors"
	"github.com/quipkit/quipkit/internal/observability"
	"github.com/quipkit/quipkit/internal/output"
	"github.com/quipkit/quipkit/internal/quip"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Read and write documents and chats",
}

var threadGetCmd = &cobra.Command{
	Use:   "get <thread-id> [thread-id...]",
	Short: "Show thread metadata",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		var threads []*core.Thread
		if len(args) == 1 {
			thread, err := client.Thread(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			threads = []*core.Thread{thread}
		} else {
			threads, err = client.Threads(cmd.Context(), args...)
			if err != nil {
				return err
			}
		}
		return render(cmd, output.ThreadsDocument(threads))
	},
}

var threadHTMLCmd = &cobra.Command{
	Use:   "html <thread-id>",
	Short: "Download the full HTML of a document",
	Long: `Download the full HTML of a document, following pagination cursors until
the last page. Writes to stdout unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("page-limit")
		html, err := client.ThreadHTML(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		outPath, _ := cmd.Flags().GetString("out")
		sink, err := openSink(cmd, outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if _, err := fmt.Fprint(sink.writer, html); err != nil {
			return err
		}
		if sink.path != "-" {
			observability.CLILogger.Info("Wrote document",
				zap.String("thread_id", args[0]),
				zap.String("path", sink.path),
				zap.Int("bytes", len(html)))
		}
		return nil
	},
}

var threadRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently updated threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		before, _ := cmd.Flags().GetInt64("max-updated-usec")
		threads, err := client.RecentThreads(cmd.Context(), count, before)
		if err != nil {
			return err
		}
		return render(cmd, output.ThreadsDocument(threads))
	},
}

var threadNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a document",
	Long: `Create a document or spreadsheet.

--content accepts literal markup, @path to read a file, or - for stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		title, _ := flags.GetString("title")
		rawContent, _ := flags.GetString("content")
		rawFormat, _ := flags.GetString("format")
		docType, _ := flags.GetString("type")
		members, _ := flags.GetStringSlice("member")

		format, err := quip.ParseDocumentFormat(rawFormat)
		if err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
		content, err := readContent(cmd, rawContent)
		if err != nil {
			return err
		}

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		thread, err := client.NewDocument(cmd.Context(), quip.NewDocumentOptions{
			Title:     title,
			Content:   content,
			Format:    format,
			Type:      core.ThreadType(strings.ToLower(strings.TrimSpace(docType))),
			MemberIDs: members,
		})
		if err != nil {
			return err
		}
		return render(cmd, output.ThreadsDocument([]*core.Thread{thread}))
	},
}

var threadEditCmd = &cobra.Command{
	Use:   "edit <thread-id>",
	Short: "Edit a document",
	Long: `Insert, replace or delete content in a document.

--location is one of append, prepend, after-section, before-section,
replace-section or delete-section. Section locations require --section.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		rawContent, _ := flags.GetString("content")
		rawFormat, _ := flags.GetString("format")
		rawLocation, _ := flags.GetString("location")
		section, _ := flags.GetString("section")

		format, err := quip.ParseDocumentFormat(rawFormat)
		if err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
		location, err := quip.ParseLocation(rawLocation)
		if err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
		content, err := readContent(cmd, rawContent)
		if err != nil {
			return err
		}

		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		thread, err := client.EditDocument(cmd.Context(), quip.EditDocumentOptions{
			ThreadID:  args[0],
			Content:   content,
			Format:    format,
			Location:  location,
			SectionID: section,
		})
		if err != nil {
			return err
		}
		return render(cmd, output.ThreadsDocument([]*core.Thread{thread}))
	},
}

func init() {
	threadHTMLCmd.Flags().String("out", "", "write HTML to this file instead of stdout")
	threadHTMLCmd.Flags().Int("page-limit", 0, "sections requested per page (0 uses the service default)")

	threadRecentCmd.Flags().Int("count", 10, "number of threads to list")
	threadRecentCmd.Flags().Int64("max-updated-usec", 0, "only threads updated before this timestamp (microseconds)")

	threadNewCmd.Flags().String("title", "", "document title")
	threadNewCmd.Flags().String("content", "", "document content, @file or - for stdin")
	threadNewCmd.Flags().String("format", "html", "content format: html or markdown")
	threadNewCmd.Flags().String("type", "document", "thread type: document or spreadsheet")
	threadNewCmd.Flags().StringSlice("member", nil, "folder or user ids to share with")

	threadEditCmd.Flags().String("content", "", "content, @file or - for stdin")
	threadEditCmd.Flags().String("format", "html", "content format: html or markdown")
	threadEditCmd.Flags().String("location", "append", "where to place the content")
	threadEditCmd.Flags().String("section", "", "section id for section locations")

	threadCmd.AddCommand(threadGetCmd, threadHTMLCmd, threadRecentCmd, threadNewCmd, threadEditCmd)
	rootCmd.AddCommand(threadCmd)
}
