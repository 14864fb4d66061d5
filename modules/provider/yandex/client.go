package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxResponseSize is the maximum response body size (10 MB).
// Protects against OOM from malformed or huge responses.
const maxResponseSize = 10 * 1024 * 1024

// Client talks to the assistant platform REST API.
type Client struct {
	config Config
	http   *http.Client
	tracer trace.Tracer
}

// NewClient creates a platform client from a validated config.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		tracer: otel.Tracer("askdocs/provider/yandex"),
	}
}

// newHTTPRequest creates an authenticated HTTP request for the platform API.
// A nil payload produces an empty body.
func (c *Client) newHTTPRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("yandex: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("yandex: create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Api-Key "+c.config.APIKey)
	req.Header.Set("x-folder-id", c.config.FolderID)

	return req, nil
}

// do sends a request and decodes the JSON response body into T.
// The response body is limited to maxResponseSize bytes.
func do[T any](ctx context.Context, c *Client, method, path string, payload any) (*T, error) {
	ctx, span := c.tracer.Start(ctx, "yandex "+method+" "+path,
		trace.WithAttributes(attribute.String("http.method", method)))
	defer span.End()

	req, err := c.newHTTPRequest(ctx, method, path, payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		err = mapConnectionError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		err = fmt.Errorf("yandex: read response: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if httpErr := mapHTTPError(resp.StatusCode, body); httpErr != nil {
		span.SetStatus(codes.Error, httpErr.Error())
		return nil, httpErr
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("yandex: unmarshal response: %w", err)
	}
	return &out, nil
}
