package yandex

import (
	"context"
	"net/http"

	"github.com/memrook/askdocs/internal/assistant"
)

type threadResponse struct {
	ID string `json:"id"`
}

// CreateThread creates an empty message thread.
func (c *Client) CreateThread(ctx context.Context) (assistant.Thread, error) {
	payload := map[string]any{
		"folderId": c.config.FolderID,
		"expirationConfig": map[string]any{
			"expirationPolicy": "SINCE_LAST_ACTIVE_ON",
			"ttlDays":          c.config.TTLDays,
		},
	}
	resp, err := do[threadResponse](ctx, c, http.MethodPost, "/assistants/v1/threads", payload)
	if err != nil {
		return assistant.Thread{}, err
	}
	return assistant.Thread{ID: resp.ID}, nil
}

// WriteMessage appends a user message to a thread.
func (c *Client) WriteMessage(ctx context.Context, threadID, text string) error {
	payload := map[string]any{
		"threadId": threadID,
		"content": map[string]any{
			"content": []map[string]any{
				{"text": map[string]any{"content": text}},
			},
		},
	}
	_, err := do[struct{}](ctx, c, http.MethodPost, "/assistants/v1/messages", payload)
	return err
}
