package yandex

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/memrook/askdocs/internal/assistant"
)

type fileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UploadFile stores a document on the platform and returns its handle.
func (c *Client) UploadFile(ctx context.Context, name, mimeType string, content []byte) (assistant.File, error) {
	payload := map[string]any{
		"folderId": c.config.FolderID,
		"name":     name,
		"mimeType": mimeType,
		"content":  base64.StdEncoding.EncodeToString(content),
	}
	resp, err := do[fileResponse](ctx, c, http.MethodPost, "/files/v1/files", payload)
	if err != nil {
		return assistant.File{}, err
	}
	return assistant.File{ID: resp.ID, Name: resp.Name}, nil
}

// DeleteFile removes an uploaded document.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/files/v1/files/"+id, nil)
	return err
}
