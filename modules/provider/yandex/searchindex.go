package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/memrook/askdocs/internal/assistant"
)

type operationResponse struct {
	ID       string          `json:"id"`
	Done     bool            `json:"done"`
	Error    *apiError       `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

type indexResponse struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Files []string `json:"fileIds"`
}

// CreateHybridIndex starts deferred construction of a hybrid (text +
// vector) search index over the given files, with static chunking and
// reciprocal rank fusion combination.
func (c *Client) CreateHybridIndex(ctx context.Context, fileIDs []string, opts assistant.IndexOptions) (assistant.Operation, error) {
	payload := map[string]any{
		"folderId": c.config.FolderID,
		"fileIds":  fileIDs,
		"indexType": map[string]any{
			"hybridSearchIndex": map[string]any{
				"chunkingStrategy": map[string]any{
					"staticStrategy": map[string]any{
						"maxChunkSizeTokens": opts.ChunkSizeTokens,
						"chunkOverlapTokens": opts.ChunkOverlapTokens,
					},
				},
				"combinationStrategy": map[string]any{
					"rrfCombination": map[string]any{},
				},
			},
		},
	}
	resp, err := do[operationResponse](ctx, c, http.MethodPost, "/assistants/v1/searchIndexes", payload)
	if err != nil {
		return assistant.Operation{}, err
	}
	return assistant.Operation{ID: resp.ID, Done: resp.Done}, nil
}

// GetIndex fetches an existing search index by ID.
func (c *Client) GetIndex(ctx context.Context, id string) (assistant.SearchIndex, error) {
	resp, err := do[indexResponse](ctx, c, http.MethodGet, "/assistants/v1/searchIndexes/"+id, nil)
	if err != nil {
		return assistant.SearchIndex{}, err
	}
	return assistant.SearchIndex{ID: resp.ID, Name: resp.Name, FileCount: len(resp.Files)}, nil
}

// WaitOperation polls an operation until it completes and returns the ID of
// the created resource. Polling backs off exponentially and stops at the
// configured overall budget.
func (c *Client) WaitOperation(ctx context.Context, opID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.PollTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // the context carries the budget

	var resourceID string
	operation := func() error {
		resp, err := do[operationResponse](ctx, c, http.MethodGet, "/operations/"+opID, nil)
		if err != nil {
			if assistant.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if resp.Error != nil {
			return backoff.Permanent(fmt.Errorf("yandex: operation %s failed: %s", opID, resp.Error.Message))
		}

		// Some responses omit the done flag but carry the result; treat a
		// present response as completion.
		if resp.Done || len(resp.Response) > 0 {
			var result struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(resp.Response, &result); err != nil || result.ID == "" {
				return backoff.Permanent(fmt.Errorf("yandex: operation %s: missing resource id", opID))
			}
			resourceID = result.ID
			return nil
		}
		return errors.New("not done")
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: operation %s", assistant.ErrTimeout, opID)
		}
		return "", err
	}
	return resourceID, nil
}
