package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const indexStateFile = "index.json"

// indexState is the persisted record of the last built search index.
type indexState struct {
	IndexID   string    `json:"index_id"`
	CreatedAt time.Time `json:"created_at"`
}

func indexStatePath(dataDir string) string {
	return filepath.Join(dataDir, indexStateFile)
}

func loadIndexState(path string) (indexState, error) {
	var state indexState
	raw, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("ingest: read index state: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("ingest: parse index state: %w", err)
	}
	return state, nil
}

func saveIndexState(path string, state indexState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: marshal index state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ingest: create state dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("ingest: write index state: %w", err)
	}
	return nil
}
