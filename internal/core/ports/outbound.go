package ports

import (
	"context"
	"io"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// DocumentRegistry persists the ingestion state of documents.
type DocumentRegistry interface {
	Upsert(ctx context.Context, doc *domain.PolicyDocument) error
	GetByID(ctx context.Context, fileID string) (*domain.PolicyDocument, error)
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// IngestQueue publishes/consumes queued ingestion requests.
type IngestQueue interface {
	PublishIngest(ctx context.Context, req domain.IngestRequest) error
	SubscribeIngest(ctx context.Context, handler func(context.Context, domain.IngestRequest) error) error
}

// TextExtractor returns the text of every page of a stored document. A page
// that cannot be read yields an empty string.
type TextExtractor interface {
	Extract(ctx context.Context, storageKey, filename string) ([]string, error)
}

// FileTypes reports which uploads a TextExtractor can read.
type FileTypes interface {
	Supports(filename string) bool
	Extensions() []string
}

// Chunker splits page text into retrieval units.
type Chunker interface {
	Chunk(text string, maxWords int) ([]domain.Chunk, error)
	ChunkPages(pages []string, maxWords int) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors and answers filtered similarity queries.
type VectorIndex interface {
	Upsert(ctx context.Context, records []domain.IndexRecord) error
	Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.RetrievedChunk, error)
	Delete(ctx context.Context, filter domain.Filter) error
}

// ControlCatalog is a read-only lookup of compliance controls.
type ControlCatalog interface {
	Lookup(id string) (domain.Control, bool)
	// IDs returns every control id in ascending order.
	IDs() []string
}

// Generator produces the final answer text.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
