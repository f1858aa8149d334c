package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusQueued DocumentStatus = "queued"
	StatusReady  DocumentStatus = "ready"
	StatusFailed DocumentStatus = "failed"
)

// PolicyDocument is the registry view of an ingested document. The chunks
// themselves live only in the vector index.
type PolicyDocument struct {
	FileID     string         `json:"file_id"`
	Filename   string         `json:"filename"`
	StorageKey string         `json:"storage_key"`
	ChunkCount int            `json:"n_chunks"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type IngestResult struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"n_chunks"`
}

// IngestRequest is the message carried by the async ingestion queue.
type IngestRequest struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// FileIDFromFilename derives the stable document identity: the base name
// without its final extension.
func FileIDFromFilename(filename string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", WrapError(ErrInvalidInput, "derive file id", fmt.Errorf("empty filename"))
	}
	id := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if id == "" {
		return "", WrapError(ErrInvalidInput, "derive file id", fmt.Errorf("filename %q has no stem", filename))
	}
	return id, nil
}
