// Package assistant defines the cloud assistant platform contract: file
// storage, hybrid search indexes, assistants, threads, and runs. The
// concrete REST client lives in modules/provider/yandex.
package assistant

import (
	"context"
	"encoding/json"
)

// File is an uploaded document on the platform.
type File struct {
	ID   string
	Name string
}

// Operation is a long-running server-side job (index construction).
type Operation struct {
	ID   string
	Done bool
}

// SearchIndex is a constructed hybrid search index.
type SearchIndex struct {
	ID        string
	Name      string
	FileCount int
}

// Assistant is a configured answering assistant, optionally bound to a
// search index.
type Assistant struct {
	ID string
}

// Thread holds one chat's message history on the platform.
type Thread struct {
	ID string
}

// Run is one assistant invocation over a thread.
type Run struct {
	ID     string
	Status string
}

// Run statuses reported by the platform.
const (
	RunPending   = "PENDING"
	RunRunning   = "IN_PROGRESS"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
	RunExpired   = "EXPIRED"
)

// RunResult is the outcome of a finished run. Raw carries the result
// message in whatever shape the platform produced; callers normalize it.
type RunResult struct {
	Status string
	Raw    json.RawMessage
}

// IndexOptions controls hybrid index chunking.
type IndexOptions struct {
	ChunkSizeTokens    int
	ChunkOverlapTokens int
}

// AssistantSpec describes an assistant to create. An empty SearchIndexID
// creates an assistant without the search tool.
type AssistantSpec struct {
	ModelURI        string
	Instruction     string
	Temperature     float64
	MaxPromptTokens int
	TTLDays         int
	SearchIndexID   string
}

// Platform is the full provider surface used by the ingest pipeline and
// the session manager.
type Platform interface {
	UploadFile(ctx context.Context, name, mimeType string, content []byte) (File, error)
	DeleteFile(ctx context.Context, id string) error

	CreateHybridIndex(ctx context.Context, fileIDs []string, opts IndexOptions) (Operation, error)
	GetIndex(ctx context.Context, id string) (SearchIndex, error)
	// WaitOperation polls until the operation completes and returns the ID
	// of the created resource.
	WaitOperation(ctx context.Context, opID string) (string, error)

	CreateAssistant(ctx context.Context, spec AssistantSpec) (Assistant, error)

	CreateThread(ctx context.Context) (Thread, error)
	WriteMessage(ctx context.Context, threadID, text string) error

	StartRun(ctx context.Context, assistantID, threadID string) (Run, error)
	WaitRun(ctx context.Context, runID string) (RunResult, error)
}
