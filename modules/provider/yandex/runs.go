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

type runResponse struct {
	ID    string `json:"id"`
	State struct {
		Status           string          `json:"status"`
		CompletedMessage json.RawMessage `json:"completed_message,omitempty"`
		Error            *apiError       `json:"error,omitempty"`
	} `json:"state"`
}

// StartRun invokes the assistant over the thread's current messages.
func (c *Client) StartRun(ctx context.Context, assistantID, threadID string) (assistant.Run, error) {
	payload := map[string]any{
		"assistantId": assistantID,
		"threadId":    threadID,
	}
	resp, err := do[runResponse](ctx, c, http.MethodPost, "/assistants/v1/runs", payload)
	if err != nil {
		return assistant.Run{}, err
	}
	return assistant.Run{ID: resp.ID, Status: resp.State.Status}, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (assistant.RunResult, error) {
	resp, err := do[runResponse](ctx, c, http.MethodGet, "/assistants/v1/runs/"+runID, nil)
	if err != nil {
		return assistant.RunResult{}, err
	}
	return assistant.RunResult{
		Status: resp.State.Status,
		Raw:    resp.State.CompletedMessage,
	}, nil
}

// WaitRun polls a run until it reaches a terminal state. A FAILED or
// EXPIRED run returns ErrRunFailed; an exhausted poll budget returns
// ErrTimeout.
func (c *Client) WaitRun(ctx context.Context, runID string) (assistant.RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.PollTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0

	var result assistant.RunResult
	poll := func() error {
		res, err := c.GetRun(ctx, runID)
		if err != nil {
			if assistant.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		switch res.Status {
		case assistant.RunCompleted:
			result = res
			return nil
		case assistant.RunFailed, assistant.RunExpired:
			return backoff.Permanent(fmt.Errorf("%w: run %s is %s", assistant.ErrRunFailed, runID, res.Status))
		default:
			return errors.New("not done")
		}
	}

	if err := backoff.Retry(poll, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return assistant.RunResult{}, fmt.Errorf("%w: run %s", assistant.ErrTimeout, runID)
		}
		return assistant.RunResult{}, err
	}
	return result, nil
}
