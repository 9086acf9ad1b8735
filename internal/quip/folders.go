package quip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/quipkit/quipkit/internal/core"
)

// NewFolderOptions describes a folder to create.
type NewFolderOptions struct {
	Title     string
	ParentID  string
	Color     string
	MemberIDs []string
}

type folderEnvelope struct {
	Folder struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Color       string `json:"color"`
		ParentID    string `json:"parent_id"`
		CreatorID   string `json:"creator_id"`
		CreatedUsec int64  `json:"created_usec"`
		UpdatedUsec int64  `json:"updated_usec"`
	} `json:"folder"`
	MemberIDs []string           `json:"member_ids"`
	Children  []core.FolderChild `json:"children"`
}

func decodeFolder(raw json.RawMessage) (*core.Folder, error) {
	var envelope folderEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode folder: %w", err)
	}
	if envelope.Folder.ID == "" {
		return nil, errors.New("decode folder: response has no folder id")
	}

	return &core.Folder{
		ID:          envelope.Folder.ID,
		Title:       envelope.Folder.Title,
		Color:       envelope.Folder.Color,
		ParentID:    envelope.Folder.ParentID,
		CreatorID:   envelope.Folder.CreatorID,
		CreatedUsec: envelope.Folder.CreatedUsec,
		UpdatedUsec: envelope.Folder.UpdatedUsec,
		MemberIDs:   envelope.MemberIDs,
		Children:    envelope.Children,
		Raw:         raw,
	}, nil
}

// Folder returns a folder and its children.
func (c *Client) Folder(ctx context.Context, id string) (*core.Folder, error) {
	if err := core.ValidateID("folder", id); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/1/folders/"+url.PathEscape(strings.TrimSpace(id)), nil, &raw); err != nil {
		return nil, err
	}
	return decodeFolder(raw)
}

// Folders returns several folders ordered by title.
func (c *Client) Folders(ctx context.Context, ids ...string) ([]*core.Folder, error) {
	if len(ids) == 0 {
		return nil, errors.New("at least one folder id is required")
	}
	for _, id := range ids {
		if err := core.ValidateID("folder", id); err != nil {
			return nil, err
		}
	}

	var raw map[string]json.RawMessage
	if err := c.get(ctx, "/1/folders/", url.Values{"ids": {strings.Join(ids, ",")}}, &raw); err != nil {
		return nil, err
	}

	folders := make([]*core.Folder, 0, len(raw))
	for _, value := range raw {
		folder, err := decodeFolder(value)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].Title != folders[j].Title {
			return folders[i].Title < folders[j].Title
		}
		return folders[i].ID < folders[j].ID
	})
	return folders, nil
}

// NewFolder creates a folder.
func (c *Client) NewFolder(ctx context.Context, opts NewFolderOptions) (*core.Folder, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, errors.New("folder title is required")
	}
	if opts.ParentID != "" {
		if err := core.ValidateID("parent folder", opts.ParentID); err != nil {
			return nil, err
		}
	}
	for _, id := range opts.MemberIDs {
		if err := core.ValidateID("member", id); err != nil {
			return nil, err
		}
	}

	form := url.Values{"title": {title}}
	if opts.ParentID != "" {
		form.Set("parent_id", opts.ParentID)
	}
	if opts.Color != "" {
		form.Set("color", opts.Color)
	}
	if len(opts.MemberIDs) > 0 {
		form.Set("member_ids", strings.Join(opts.MemberIDs, ","))
	}

	var raw json.RawMessage
	if err := c.post(ctx, "/1/folders/new", form, &raw); err != nil {
		return nil, err
	}
	return decodeFolder(raw)
}
