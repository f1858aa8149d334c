package ports

import (
	"context"
	"io"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// DocumentIngestor is the inbound contract for synchronous and queued ingestion.
type DocumentIngestor interface {
	Ingest(ctx context.Context, filename string, body io.Reader) (*domain.IngestResult, error)
	Enqueue(ctx context.Context, filename string, body io.Reader) (*domain.PolicyDocument, error)
}

// StoredDocumentIngestor ingests a document already present in object storage.
type StoredDocumentIngestor interface {
	IngestStored(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)
}

// PolicyQuestionAnswerer is the inbound contract for grounded question answering.
type PolicyQuestionAnswerer interface {
	Answer(ctx context.Context, fileID, question string) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for the document registry.
type DocumentReader interface {
	GetByID(ctx context.Context, fileID string) (*domain.PolicyDocument, error)
}
