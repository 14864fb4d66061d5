package yandex

import (
	"context"
	"net/http"

	"github.com/memrook/askdocs/internal/assistant"
)

type assistantResponse struct {
	ID string `json:"id"`
}

// CreateAssistant creates an answering assistant. A non-empty
// SearchIndexID attaches the search tool; otherwise the assistant answers
// from the model alone.
func (c *Client) CreateAssistant(ctx context.Context, spec assistant.AssistantSpec) (assistant.Assistant, error) {
	modelURI := spec.ModelURI
	if modelURI == "" {
		modelURI = c.config.modelURI()
	}
	ttl := spec.TTLDays
	if ttl == 0 {
		ttl = c.config.TTLDays
	}
	maxPrompt := spec.MaxPromptTokens
	if maxPrompt == 0 {
		maxPrompt = c.config.MaxPromptTokens
	}
	temperature := spec.Temperature
	if temperature == 0 && c.config.Temperature != nil {
		temperature = *c.config.Temperature
	}

	payload := map[string]any{
		"folderId":    c.config.FolderID,
		"modelUri":    modelURI,
		"instruction": spec.Instruction,
		"completionOptions": map[string]any{
			"temperature": temperature,
		},
		"promptTruncationOptions": map[string]any{
			"maxPromptTokens": maxPrompt,
		},
		"expirationConfig": map[string]any{
			"expirationPolicy": "SINCE_LAST_ACTIVE_ON",
			"ttlDays":          ttl,
		},
	}
	if spec.SearchIndexID != "" {
		payload["tools"] = []map[string]any{
			{"searchIndex": map[string]any{"searchIndexIds": []string{spec.SearchIndexID}}},
		}
	}

	resp, err := do[assistantResponse](ctx, c, http.MethodPost, "/assistants/v1/assistants", payload)
	if err != nil {
		return assistant.Assistant{}, err
	}
	return assistant.Assistant{ID: resp.ID}, nil
}
