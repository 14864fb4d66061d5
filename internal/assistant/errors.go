package assistant

import "errors"

// Sentinel errors mapped from platform responses. Callers decide
// retryability with errors.Is.
var (
	// ErrRateLimit indicates the platform throttled the request (HTTP 429).
	ErrRateLimit = errors.New("assistant: rate limited")

	// ErrAuth indicates the API key or folder is rejected (HTTP 401/403).
	ErrAuth = errors.New("assistant: authentication failed")

	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("assistant: not found")

	// ErrUnavailable indicates a platform-side failure (HTTP 5xx or
	// network error).
	ErrUnavailable = errors.New("assistant: platform unavailable")

	// ErrTimeout indicates a poll budget was exhausted.
	ErrTimeout = errors.New("assistant: operation timed out")

	// ErrRunFailed indicates a run finished in FAILED or EXPIRED state.
	ErrRunFailed = errors.New("assistant: run failed")
)

// Retryable reports whether an operation that failed with err is worth
// retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
