package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

// DefaultChunkMaxWords is the chunk budget used when none is configured.
const DefaultChunkMaxWords = 250

type IngestOptions struct {
	MaxWords int
	// Registry and Queue are optional.
	Registry ports.DocumentRegistry
	Queue    ports.IngestQueue
}

type IngestUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	registry  ports.DocumentRegistry
	queue     ports.IngestQueue
	maxWords  int
	now       func() time.Time
}

func NewIngestUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	opts IngestOptions,
) *IngestUseCase {
	maxWords := opts.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultChunkMaxWords
	}
	return &IngestUseCase{
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		registry:  opts.Registry,
		queue:     opts.Queue,
		maxWords:  maxWords,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores the upload and replaces every indexed chunk of its file_id.
// A document without extractable text succeeds with zero chunks.
func (uc *IngestUseCase) Ingest(ctx context.Context, filename string, body io.Reader) (*domain.IngestResult, error) {
	req, err := uc.save(ctx, filename, body)
	if err != nil {
		return nil, err
	}
	return uc.IngestStored(ctx, req)
}

// Enqueue stores the upload and hands it to the ingestion worker.
func (uc *IngestUseCase) Enqueue(ctx context.Context, filename string, body io.Reader) (*domain.PolicyDocument, error) {
	if uc.queue == nil {
		return nil, domain.WrapError(domain.ErrTemporary, "enqueue ingestion", errors.New("ingestion queue is not configured"))
	}

	req, err := uc.save(ctx, filename, body)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	req.EnqueuedAt = now
	doc := &domain.PolicyDocument{
		FileID:     req.FileID,
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
		Status:     domain.StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if uc.registry != nil {
		if err := uc.registry.Upsert(ctx, doc); err != nil {
			return nil, domain.WrapError(domain.ErrIngestion, "record queued document", err)
		}
	}
	if err := uc.queue.PublishIngest(ctx, req); err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "publish ingestion request", err)
	}
	return doc, nil
}

// IngestStored runs extraction, chunking, embedding and the index replace for
// a document already in object storage.
func (uc *IngestUseCase) IngestStored(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	if strings.TrimSpace(req.FileID) == "" || strings.TrimSpace(req.StorageKey) == "" {
		return nil, domain.WrapError(domain.ErrIngestion, "ingest document", fmt.Errorf("%w: file_id and storage_key are required", domain.ErrInvalidInput))
	}

	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()
	span.SetAttributes(attribute.String("file_id", req.FileID))

	start := time.Now()
	count, err := uc.runPipeline(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		uc.recordFailure(ctx, req, err)
		slog.Error("ingest_failed", "file_id", req.FileID, "error_kind", domain.KindOf(err), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("chunks", count))

	if uc.registry != nil {
		now := uc.now()
		doc := &domain.PolicyDocument{
			FileID:     req.FileID,
			Filename:   req.Filename,
			StorageKey: req.StorageKey,
			ChunkCount: count,
			Status:     domain.StatusReady,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := uc.registry.Upsert(ctx, doc); err != nil {
			return nil, domain.WrapError(domain.ErrIngestion, "record ingested document", err)
		}
	}

	slog.Info("ingest_completed",
		"file_id", req.FileID,
		"chunks", count,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return &domain.IngestResult{
		FileID:     req.FileID,
		Filename:   req.Filename,
		ChunkCount: count,
	}, nil
}

func (uc *IngestUseCase) runPipeline(ctx context.Context, req domain.IngestRequest) (int, error) {
	pages, err := uc.extractor.Extract(ctx, req.StorageKey, req.Filename)
	if err != nil {
		return 0, domain.WrapError(domain.ErrIngestion, "extract text", err)
	}

	chunks, err := uc.chunker.ChunkPages(pages, uc.maxWords)
	if err != nil {
		return 0, domain.WrapError(domain.ErrIngestion, "chunk document", err)
	}
	if len(chunks) == 0 {
		slog.Warn("ingest_no_text", "file_id", req.FileID, "pages", len(pages))
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := uc.replace(ctx, req.FileID, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (uc *IngestUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrIngestion,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// replace deletes every chunk of fileID before inserting the new set so a
// document never has two versions in the index.
func (uc *IngestUseCase) replace(ctx context.Context, fileID string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := uc.index.Delete(ctx, domain.Filter{FileID: fileID}); err != nil {
		return domain.WrapError(domain.ErrIngestion, "delete stale chunks", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	records := make([]domain.IndexRecord, 0, len(chunks))
	for i, c := range chunks {
		meta := c.Metadata
		meta.FileID = fileID
		records = append(records, domain.IndexRecord{
			ID:       domain.ChunkID(fileID, meta.ChunkIndex),
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: meta,
		})
	}
	if err := uc.index.Upsert(ctx, records); err != nil {
		return domain.WrapError(domain.ErrIngestion, "upsert chunks", err)
	}
	return nil
}

func (uc *IngestUseCase) save(ctx context.Context, filename string, body io.Reader) (domain.IngestRequest, error) {
	fileID, err := domain.FileIDFromFilename(filename)
	if err != nil {
		return domain.IngestRequest{}, domain.WrapError(domain.ErrIngestion, "ingest document", err)
	}
	if body == nil {
		return domain.IngestRequest{}, domain.WrapError(domain.ErrIngestion, "save upload", fmt.Errorf("%w: document body is required", domain.ErrInvalidInput))
	}

	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, key, body); err != nil {
		return domain.IngestRequest{}, domain.WrapError(domain.ErrIngestion, "save upload", err)
	}
	return domain.IngestRequest{
		FileID:     fileID,
		Filename:   filepath.Base(filename),
		StorageKey: key,
	}, nil
}

func (uc *IngestUseCase) recordFailure(ctx context.Context, req domain.IngestRequest, cause error) {
	if uc.registry == nil {
		return
	}
	now := uc.now()
	doc := &domain.PolicyDocument{
		FileID:     req.FileID,
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
		Status:     domain.StatusFailed,
		Error:      cause.Error(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.registry.Upsert(ctx, doc); err != nil {
		slog.Warn("ingest_failure_not_recorded", "file_id", req.FileID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" {
		return "document.bin"
	}
	return base
}
