package quip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/quipkit/quipkit/internal/core"
)

// Messages lists the most recent messages of a thread, newest first.
// maxCreatedUsec pages backwards in time; zero starts from now.
func (c *Client) Messages(ctx context.Context, threadID string, count int, maxCreatedUsec int64) ([]*core.Message, error) {
	if err := core.ValidateID("thread", threadID); err != nil {
		return nil, err
	}

	query := url.Values{}
	if count > 0 {
		query.Set("count", strconv.Itoa(count))
	}
	if maxCreatedUsec > 0 {
		query.Set("max_created_usec", strconv.FormatInt(maxCreatedUsec, 10))
	}

	var raw []json.RawMessage
	if err := c.get(ctx, "/1/messages/"+url.PathEscape(strings.TrimSpace(threadID)), query, &raw); err != nil {
		return nil, err
	}

	messages := make([]*core.Message, 0, len(raw))
	for _, value := range raw {
		message, err := decodeMessage(value)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// NewMessage posts a chat message to a thread.
func (c *Client) NewMessage(ctx context.Context, threadID string, content string) (*core.Message, error) {
	if err := core.ValidateID("thread", threadID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("message content is required")
	}

	form := url.Values{
		"thread_id": {strings.TrimSpace(threadID)},
		"content":   {content},
	}

	var raw json.RawMessage
	if err := c.post(ctx, "/1/messages/new", form, &raw); err != nil {
		return nil, err
	}
	return decodeMessage(raw)
}

func decodeMessage(raw json.RawMessage) (*core.Message, error) {
	var message core.Message
	if err := json.Unmarshal(raw, &message); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	message.Raw = raw
	return &message, nil
}
