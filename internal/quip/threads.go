package quip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/quipkit/quipkit/internal/core"
)

// Location controls where EditDocument places content.
type Location int

const (
	LocationAppend Location = iota
	LocationPrepend
	LocationAfterSection
	LocationBeforeSection
	LocationReplaceSection
	LocationDeleteSection
)

var locationNames = map[string]Location{
	"append":          LocationAppend,
	"prepend":         LocationPrepend,
	"after-section":   LocationAfterSection,
	"before-section":  LocationBeforeSection,
	"replace-section": LocationReplaceSection,
	"delete-section":  LocationDeleteSection,
}

// ParseLocation maps a name such as "after-section" to a Location.
func ParseLocation(value string) (Location, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	if name == "" {
		return LocationAppend, nil
	}
	location, ok := locationNames[strings.ReplaceAll(name, "_", "-")]
	if !ok {
		return 0, fmt.Errorf("unknown edit location %q", value)
	}
	return location, nil
}

// ParseDocumentFormat accepts html, markdown or md; empty means html.
func ParseDocumentFormat(value string) (DocumentFormat, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatHTML):
		return FormatHTML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown document format %q", value)
	}
}

// DocumentFormat is the markup of submitted content.
type DocumentFormat string

const (
	FormatHTML     DocumentFormat = "html"
	FormatMarkdown DocumentFormat = "markdown"
)

// NewDocumentOptions describes a document to create.
type NewDocumentOptions struct {
	Title     string
	Content   string
	Format    DocumentFormat
	Type      core.ThreadType
	MemberIDs []string
}

// EditDocumentOptions describes an edit to an existing document.
type EditDocumentOptions struct {
	ThreadID  string
	Content   string
	Format    DocumentFormat
	Location  Location
	SectionID string
}

type threadEnvelope struct {
	Thread struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Link        string `json:"link"`
		Type        string `json:"type"`
		AuthorID    string `json:"author_id"`
		CreatedUsec int64  `json:"created_usec"`
		UpdatedUsec int64  `json:"updated_usec"`
	} `json:"thread"`
	UserIDs         []string `json:"user_ids"`
	SharedFolderIDs []string `json:"shared_folder_ids"`
	HTML            string   `json:"html"`
}

func decodeThread(raw json.RawMessage) (*core.Thread, error) {
	var envelope threadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode thread: %w", err)
	}
	if envelope.Thread.ID == "" {
		return nil, errors.New("decode thread: response has no thread id")
	}

	return &core.Thread{
		ID:          envelope.Thread.ID,
		Title:       envelope.Thread.Title,
		Link:        envelope.Thread.Link,
		Type:        core.ThreadType(envelope.Thread.Type),
		AuthorID:    envelope.Thread.AuthorID,
		CreatedUsec: envelope.Thread.CreatedUsec,
		UpdatedUsec: envelope.Thread.UpdatedUsec,
		HTML:        envelope.HTML,
		UserIDs:     envelope.UserIDs,
		FolderIDs:   envelope.SharedFolderIDs,
		Raw:         raw,
	}, nil
}

func decodeThreadMap(raw map[string]json.RawMessage) ([]*core.Thread, error) {
	threads := make([]*core.Thread, 0, len(raw))
	for _, value := range raw {
		thread, err := decodeThread(value)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].UpdatedUsec != threads[j].UpdatedUsec {
			return threads[i].UpdatedUsec > threads[j].UpdatedUsec
		}
		return threads[i].ID < threads[j].ID
	})
	return threads, nil
}

// Thread returns one thread, including its legacy single-response HTML.
func (c *Client) Thread(ctx context.Context, id string) (*core.Thread, error) {
	if err := core.ValidateID("thread", id); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/1/threads/"+url.PathEscape(strings.TrimSpace(id)), nil, &raw); err != nil {
		return nil, err
	}
	return decodeThread(raw)
}

// Threads returns several threads, newest first.
func (c *Client) Threads(ctx context.Context, ids ...string) ([]*core.Thread, error) {
	if len(ids) == 0 {
		return nil, errors.New("at least one thread id is required")
	}
	for _, id := range ids {
		if err := core.ValidateID("thread", id); err != nil {
			return nil, err
		}
	}

	var raw map[string]json.RawMessage
	query := url.Values{"ids": {strings.Join(ids, ",")}}
	if err := c.get(ctx, "/1/threads/", query, &raw); err != nil {
		return nil, err
	}
	return decodeThreadMap(raw)
}

// RecentThreads lists the most recently updated threads visible to the user.
// maxUpdatedUsec pages backwards in time; zero starts from now.
func (c *Client) RecentThreads(ctx context.Context, count int, maxUpdatedUsec int64) ([]*core.Thread, error) {
	query := url.Values{}
	if count > 0 {
		query.Set("count", strconv.Itoa(count))
	}
	if maxUpdatedUsec > 0 {
		query.Set("max_updated_usec", strconv.FormatInt(maxUpdatedUsec, 10))
	}

	var raw map[string]json.RawMessage
	if err := c.get(ctx, "/1/threads/recent", query, &raw); err != nil {
		return nil, err
	}
	return decodeThreadMap(raw)
}

// ThreadHTMLPage fetches one page of a document's HTML.
func (c *Client) ThreadHTMLPage(ctx context.Context, id string, cursor string, limit int) (core.Page, error) {
	if err := core.ValidateID("thread", id); err != nil {
		return core.Page{}, err
	}

	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var payload struct {
		HTML             string `json:"html"`
		ResponseMetadata struct {
			NextCursor string `json:"next_cursor"`
		} `json:"response_metadata"`
	}
	path := "/2/threads/" + url.PathEscape(strings.TrimSpace(id)) + "/html"
	if err := c.get(ctx, path, query, &payload); err != nil {
		return core.Page{}, err
	}

	return core.Page{Content: payload.HTML, NextCursor: payload.ResponseMetadata.NextCursor}, nil
}

// ThreadHTML assembles the full HTML of a document from all of its pages.
func (c *Client) ThreadHTML(ctx context.Context, id string, limit int) (string, error) {
	if err := core.ValidateID("thread", id); err != nil {
		return "", err
	}
	return c.Paginator.FetchAll(ctx, func(ctx context.Context, cursor string, limit int) (core.Page, error) {
		return c.ThreadHTMLPage(ctx, id, cursor, limit)
	}, limit)
}

// NewDocument creates a document and returns the new thread.
func (c *Client) NewDocument(ctx context.Context, opts NewDocumentOptions) (*core.Thread, error) {
	if strings.TrimSpace(opts.Content) == "" && strings.TrimSpace(opts.Title) == "" {
		return nil, errors.New("title or content is required")
	}
	for _, id := range opts.MemberIDs {
		if err := core.ValidateID("member", id); err != nil {
			return nil, err
		}
	}

	form := url.Values{}
	if opts.Title != "" {
		form.Set("title", opts.Title)
	}
	form.Set("content", opts.Content)
	form.Set("format", string(defaultFormat(opts.Format)))
	if opts.Type != "" {
		form.Set("type", string(opts.Type))
	}
	if len(opts.MemberIDs) > 0 {
		form.Set("member_ids", strings.Join(opts.MemberIDs, ","))
	}

	var raw json.RawMessage
	if err := c.post(ctx, "/1/threads/new-document", form, &raw); err != nil {
		return nil, err
	}
	return decodeThread(raw)
}

// EditDocument modifies a document and returns the updated thread.
func (c *Client) EditDocument(ctx context.Context, opts EditDocumentOptions) (*core.Thread, error) {
	if err := core.ValidateID("thread", opts.ThreadID); err != nil {
		return nil, err
	}
	if opts.Location >= LocationAfterSection && strings.TrimSpace(opts.SectionID) == "" {
		return nil, errors.New("section id is required for section edits")
	}

	form := url.Values{}
	form.Set("thread_id", strings.TrimSpace(opts.ThreadID))
	form.Set("content", opts.Content)
	form.Set("format", string(defaultFormat(opts.Format)))
	form.Set("location", strconv.Itoa(int(opts.Location)))
	if opts.SectionID != "" {
		form.Set("section_id", opts.SectionID)
	}

	var raw json.RawMessage
	if err := c.post(ctx, "/1/threads/edit-document", form, &raw); err != nil {
		return nil, err
	}
	return decodeThread(raw)
}

func defaultFormat(format DocumentFormat) DocumentFormat {
	if format == "" {
		return FormatHTML
	}
	return format
}
