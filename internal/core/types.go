package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ThreadType identifies the kind of thread.
type ThreadType string

const (
	ThreadTypeDocument    ThreadType = "document"
	ThreadTypeSpreadsheet ThreadType = "spreadsheet"
	ThreadTypeSlides      ThreadType = "slides"
	ThreadTypeChat        ThreadType = "chat"
)

// Thread is a document or chat thread. Fields beyond the typed ones are kept
// verbatim in Raw.
type Thread struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Link        string          `json:"link,omitempty"`
	Type        ThreadType      `json:"type,omitempty"`
	AuthorID    string          `json:"author_id,omitempty"`
	CreatedUsec int64           `json:"created_usec,omitempty"`
	UpdatedUsec int64           `json:"updated_usec,omitempty"`
	HTML        string          `json:"html,omitempty"`
	UserIDs     []string        `json:"user_ids,omitempty"`
	FolderIDs   []string        `json:"shared_folder_ids,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// FolderChild is one entry of a folder listing: either a thread or a folder.
type FolderChild struct {
	ThreadID string `json:"thread_id,omitempty"`
	FolderID string `json:"folder_id,omitempty"`
}

// IsFolder reports whether the child is a subfolder.
func (c FolderChild) IsFolder() bool {
	return c.FolderID != ""
}

// Folder is a folder and its direct children.
type Folder struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Color       string          `json:"color,omitempty"`
	ParentID    string          `json:"parent_id,omitempty"`
	CreatorID   string          `json:"creator_id,omitempty"`
	CreatedUsec int64           `json:"created_usec,omitempty"`
	UpdatedUsec int64           `json:"updated_usec,omitempty"`
	MemberIDs   []string        `json:"member_ids,omitempty"`
	Children    []FolderChild   `json:"children,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// User is an account on the service.
type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Emails          []string        `json:"emails,omitempty"`
	Affinity        float64         `json:"affinity,omitempty"`
	DesktopFolderID string          `json:"desktop_folder_id,omitempty"`
	ArchiveFolderID string          `json:"archive_folder_id,omitempty"`
	StarredFolderID string          `json:"starred_folder_id,omitempty"`
	PrivateFolderID string          `json:"private_folder_id,omitempty"`
	GroupFolderIDs  []string        `json:"group_folder_ids,omitempty"`
	SharedFolderIDs []string        `json:"shared_folder_ids,omitempty"`
	Raw             json.RawMessage `json:"-"`
}

// Message is a chat message posted to a thread.
type Message struct {
	ID          string          `json:"id"`
	AuthorID    string          `json:"author_id"`
	AuthorName  string          `json:"author_name,omitempty"`
	Text        string          `json:"text"`
	CreatedUsec int64           `json:"created_usec"`
	UpdatedUsec int64           `json:"updated_usec,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// Page is one fragment of a cursor-paginated resource.
type Page struct {
	Content    string
	NextCursor string
}

// ErrInvalidID is returned for identifiers rejected before any request is made.
var ErrInvalidID = errors.New("invalid identifier")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9]{11,12}$`)

// ValidateID checks the shape of a thread, folder, user or message identifier.
func ValidateID(kind, id string) error {
	value := strings.TrimSpace(id)
	if value == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidID, kind)
	}
	if !idPattern.MatchString(value) {
		return fmt.Errorf("%w: %s id %q must be 11 or 12 alphanumeric characters", ErrInvalidID, kind, value)
	}
	return nil
}
