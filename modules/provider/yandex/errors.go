package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/memrook/askdocs/internal/assistant"
)

// apiError is the platform error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mapHTTPError maps an HTTP status code and response body to an assistant
// sentinel error. Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var msg string
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	} else {
		msg = string(body)
	}

	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: %s", assistant.ErrRateLimit, msg)
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: %s", assistant.ErrAuth, msg)
	case statusCode == 404:
		return fmt.Errorf("%w: %s", assistant.ErrNotFound, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", assistant.ErrUnavailable, msg)
	default:
		return fmt.Errorf("yandex: HTTP %d: %s", statusCode, msg)
	}
}

// mapConnectionError maps network-level errors to assistant sentinel errors.
// Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", assistant.ErrUnavailable, err)
	}
	return fmt.Errorf("yandex: %w", err)
}
