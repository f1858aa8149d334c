package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// Retriever runs composed similarity queries scoped to one document.
type Retriever struct {
	composer *QueryComposer
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewRetriever(composer *QueryComposer, embedder ports.Embedder, index ports.VectorIndex) *Retriever {
	return &Retriever{
		composer: composer,
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns up to k chunks of fileID in the index's relevance order.
// Fewer than k stored chunks, or none at all, is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question, fileID string, k int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrQuery, "retrieve", fmt.Errorf("%w: question is required", domain.ErrInvalidInput))
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, domain.WrapError(domain.ErrQuery, "retrieve", fmt.Errorf("%w: file_id is required", domain.ErrInvalidInput))
	}
	if k <= 0 {
		k = DefaultTopK
	}

	ctx, span := tracer.Start(ctx, "retrieve")
	defer span.End()

	composed := r.composer.Compose(question)
	span.SetAttributes(
		attribute.String("file_id", fileID),
		attribute.Int("k", k),
		attribute.Bool("control_detected", composed.Match.Found),
	)

	vector, err := r.embedder.EmbedQuery(ctx, composed.Text)
	if err != nil {
		recordSpanError(span, err)
		return nil, domain.WrapError(domain.ErrQuery, "embed query", err)
	}

	chunks, err := r.index.Query(ctx, vector, k, domain.Filter{FileID: fileID})
	if err != nil {
		recordSpanError(span, err)
		return nil, domain.WrapError(domain.ErrQuery, "query vector index", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Metadata.FileID != fileID {
			continue
		}
		out = append(out, chunk)
	}
	span.SetAttributes(attribute.Int("retrieved", len(out)))
	return out, nil
}
