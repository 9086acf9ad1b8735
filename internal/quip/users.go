package quip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/quipkit/quipkit/internal/core"
)

func decodeUser(raw json.RawMessage) (*core.User, error) {
	var user core.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("decode user: response has no user id")
	}
	user.Raw = raw
	return &user, nil
}

// CurrentUser returns the user that owns the token.
func (c *Client) CurrentUser(ctx context.Context) (*core.User, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/1/users/current", nil, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// User returns a user by id.
func (c *Client) User(ctx context.Context, id string) (*core.User, error) {
	if err := core.ValidateID("user", id); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/1/users/"+url.PathEscape(strings.TrimSpace(id)), nil, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}
