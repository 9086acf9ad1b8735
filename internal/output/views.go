package output

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
	"github.com/quipkit/quipkit/internal/export"
)

// FormatUsec renders a microsecond timestamp in UTC, or "-" when unset.
func FormatUsec(usec int64) string {
	if usec <= 0 {
		return "-"
	}
	return time.UnixMicro(usec).UTC().Format(time.RFC3339)
}

// rawOr prefers the payload the service returned so JSON output keeps
// fields the typed model does not carry.
func rawOr(raw json.RawMessage, typed any) any {
	if len(raw) > 0 {
		return raw
	}
	return typed
}

// ThreadsDocument lists thread metadata.
func ThreadsDocument(threads []*core.Thread) Document {
	doc := Document{
		Header: []string{"ID", "TITLE", "TYPE", "UPDATED", "LINK"},
		Footer: fmt.Sprintf("%d threads", len(threads)),
	}
	values := make([]any, 0, len(threads))
	for _, thread := range threads {
		if thread == nil {
			continue
		}
		doc.Rows = append(doc.Rows, []string{
			thread.ID, thread.Title, string(thread.Type), FormatUsec(thread.UpdatedUsec), thread.Link,
		})
		values = append(values, rawOr(thread.Raw, thread))
	}
	doc.Value = values
	return doc
}

// FolderDocument lists a folder's children.
func FolderDocument(folder *core.Folder) Document {
	doc := Document{
		Title:  folder.Title,
		Header: []string{"KIND", "ID"},
		Value:  rawOr(folder.Raw, folder),
	}
	threads, folders := 0, 0
	for _, child := range folder.Children {
		switch {
		case child.FolderID != "":
			folders++
			doc.Rows = append(doc.Rows, []string{"folder", child.FolderID})
		case child.ThreadID != "":
			threads++
			doc.Rows = append(doc.Rows, []string{"thread", child.ThreadID})
		}
	}
	doc.Footer = fmt.Sprintf("%d folders, %d threads", folders, threads)
	return doc
}

// UsersDocument lists users.
func UsersDocument(users []*core.User) Document {
	doc := Document{Header: []string{"ID", "NAME", "EMAILS", "DESKTOP FOLDER"}}
	values := make([]any, 0, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		doc.Rows = append(doc.Rows, []string{
			user.ID, user.Name, strings.Join(user.Emails, ", "), user.DesktopFolderID,
		})
		values = append(values, rawOr(user.Raw, user))
	}
	doc.Value = values
	return doc
}

// MessagesDocument lists thread messages.
func MessagesDocument(messages []*core.Message) Document {
	doc := Document{
		Header: []string{"ID", "AUTHOR", "CREATED", "TEXT"},
		Footer: fmt.Sprintf("%d messages", len(messages)),
	}
	values := make([]any, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		author := msg.AuthorName
		if author == "" {
			author = msg.AuthorID
		}
		doc.Rows = append(doc.Rows, []string{msg.ID, author, FormatUsec(msg.CreatedUsec), msg.Text})
		values = append(values, rawOr(msg.Raw, msg))
	}
	doc.Value = values
	return doc
}

// RateLimitDocument reports the coordinator state per window.
func RateLimitDocument(statuses []engine.WindowStatus) Document {
	doc := Document{
		Title:  "Rate limits",
		Header: []string{"WINDOW", "LIMIT", "REMAINING", "RESETS", "DELAY", "REASON"},
		Value:  statuses,
	}
	for _, status := range statuses {
		row := []string{string(status.Window), "-", "-", "-", status.Delay.String(), status.Reason}
		if snap := status.Snapshot; snap != nil {
			row[1] = strconv.Itoa(snap.Limit)
			row[2] = strconv.Itoa(snap.Remaining)
			if !snap.ResetAt.IsZero() {
				row[3] = snap.ResetAt.UTC().Format(time.RFC3339)
			}
		}
		if row[5] == "" {
			row[5] = "-"
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

// ExportDocument summarizes an export run.
func ExportDocument(summary *export.Summary) Document {
	if summary == nil {
		summary = &export.Summary{}
	}
	return Document{
		Title:  "Export",
		Header: []string{"ITEM", "COUNT"},
		Rows: [][]string{
			{"folders visited", strconv.Itoa(summary.FoldersVisited)},
			{"folders skipped", strconv.Itoa(summary.FoldersSkipped)},
			{"threads downloaded", strconv.Itoa(summary.ThreadsDownloaded)},
			{"threads skipped", strconv.Itoa(summary.ThreadsSkipped)},
			{"failures", strconv.Itoa(summary.Failures)},
		},
		Value: summary,
	}
}
