package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/chunking"
)

type ingestFixture struct {
	storage  *storageFake
	embedder *embedderFake
	index    *indexFake
	registry *registryFake
	queue    *queueFake
	uc       *IngestUseCase
}

func newIngestFixture(maxWords int) *ingestFixture {
	f := &ingestFixture{
		storage:  &storageFake{},
		embedder: &embedderFake{},
		index:    &indexFake{},
		registry: &registryFake{},
		queue:    &queueFake{},
	}
	f.uc = NewIngestUseCase(
		f.storage,
		&extractorFake{storage: f.storage},
		chunking.NewParagraphChunker(),
		f.embedder,
		f.index,
		IngestOptions{MaxWords: maxWords, Registry: f.registry, Queue: f.queue},
	)
	return f
}

func paragraphs(n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf("clause %d applies", i))
	}
	return strings.Join(parts, "\n\n")
}

func TestIngestReplacesPreviousChunks(t *testing.T) {
	f := newIngestFixture(3)
	ctx := context.Background()

	first, err := f.uc.Ingest(ctx, "policy_v2.pdf", strings.NewReader(paragraphs(10)))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.FileID != "policy_v2" || first.ChunkCount != 10 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := f.uc.Ingest(ctx, "policy_v2.pdf", strings.NewReader(paragraphs(4)))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.ChunkCount != 4 {
		t.Fatalf("expected 4 chunks, got %d", second.ChunkCount)
	}
	if got := f.index.countFor("policy_v2"); got != 4 {
		t.Fatalf("expected exactly 4 indexed chunks, got %d", got)
	}

	retriever := NewRetriever(NewQueryComposer(nil), f.embedder, f.index)
	chunks, err := retriever.Retrieve(ctx, "clause", "policy_v2", 20)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 retrievable chunks, got %d", len(chunks))
	}
}

func TestIngestLeavesOtherDocumentsAlone(t *testing.T) {
	f := newIngestFixture(3)
	f.index.seed("other", "keep me")

	if _, err := f.uc.Ingest(context.Background(), "policy.pdf", strings.NewReader(paragraphs(2))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := f.index.countFor("other"); got != 1 {
		t.Fatalf("expected other document untouched, got %d chunks", got)
	}
}

func TestIngestRecordsMetadata(t *testing.T) {
	f := newIngestFixture(3)

	_, err := f.uc.Ingest(context.Background(), "Access Policy.pdf", strings.NewReader("alpha beta\n\ngamma delta\f\nepsilon zeta"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(f.storage.saved) != 1 {
		t.Fatalf("expected one stored upload, got %v", f.storage.saved)
	}
	for key := range f.storage.saved {
		if !strings.HasSuffix(key, "_Access_Policy.pdf") {
			t.Fatalf("expected sanitized storage key suffix, got %q", key)
		}
	}
	if len(f.embedder.batches) != 1 || len(f.embedder.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3 texts, got %v", f.embedder.batches)
	}

	for i, rec := range f.index.records {
		if rec.ID != domain.ChunkID("Access Policy", i) {
			t.Fatalf("unexpected record id %q", rec.ID)
		}
		if rec.Metadata.FileID != "Access Policy" || rec.Metadata.ChunkIndex != i {
			t.Fatalf("unexpected metadata %+v", rec.Metadata)
		}
	}
	last := f.index.records[2].Metadata
	if last.Page == nil || *last.Page != 2 {
		t.Fatalf("expected last chunk on page 2, got %+v", last.Page)
	}

	doc, err := f.registry.GetByID(context.Background(), "Access Policy")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if doc.Status != domain.StatusReady || doc.ChunkCount != 3 {
		t.Fatalf("unexpected registry row %+v", doc)
	}
}

func TestIngestWithoutTextSucceedsWithZeroChunks(t *testing.T) {
	f := newIngestFixture(250)
	f.index.seed("scan", "stale")

	got, err := f.uc.Ingest(context.Background(), "scan.pdf", strings.NewReader(" \n\f\n "))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got.ChunkCount != 0 {
		t.Fatalf("expected 0 chunks, got %d", got.ChunkCount)
	}
	if len(f.embedder.batches) != 0 {
		t.Fatalf("embedder must not be called without chunks")
	}
	if f.index.countFor("scan") != 0 {
		t.Fatalf("expected stale chunks removed")
	}
}

func TestIngestWrapsCollaboratorErrors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *ingestFixture)
	}{
		{name: "storage", setup: func(f *ingestFixture) { f.storage.err = errors.New("disk full") }},
		{name: "embedder", setup: func(f *ingestFixture) { f.embedder.err = errors.New("model down") }},
		{name: "vector count", setup: func(f *ingestFixture) { f.embedder.dropVector = true }},
		{name: "delete", setup: func(f *ingestFixture) { f.index.deleteErr = errors.New("index down") }},
		{name: "upsert", setup: func(f *ingestFixture) { f.index.upsertErr = errors.New("index down") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newIngestFixture(3)
			tc.setup(f)

			_, err := f.uc.Ingest(context.Background(), "policy.pdf", strings.NewReader(paragraphs(2)))
			if !errors.Is(err, domain.ErrIngestion) {
				t.Fatalf("expected ErrIngestion, got %v", err)
			}
		})
	}
}

func TestIngestMarksRegistryFailed(t *testing.T) {
	f := newIngestFixture(3)
	f.index.upsertErr = errors.New("index down")

	if _, err := f.uc.Ingest(context.Background(), "policy.pdf", strings.NewReader(paragraphs(2))); err == nil {
		t.Fatalf("expected error")
	}
	doc, err := f.registry.GetByID(context.Background(), "policy")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if doc.Status != domain.StatusFailed || !strings.Contains(doc.Error, "index down") {
		t.Fatalf("unexpected registry row %+v", doc)
	}
}

func TestIngestRejectsEmptyFilename(t *testing.T) {
	f := newIngestFixture(3)

	_, err := f.uc.Ingest(context.Background(), "  ", strings.NewReader("text"))
	if !errors.Is(err, domain.ErrIngestion) || !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input ingestion error, got %v", err)
	}
}

func TestEnqueuePublishesStoredDocument(t *testing.T) {
	f := newIngestFixture(3)

	doc, err := f.uc.Enqueue(context.Background(), "policy.pdf", strings.NewReader(paragraphs(2)))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if doc.Status != domain.StatusQueued || doc.FileID != "policy" {
		t.Fatalf("unexpected queued document %+v", doc)
	}
	if len(f.queue.published) != 1 || !strings.HasSuffix(f.queue.published[0].StorageKey, "_policy.pdf") {
		t.Fatalf("unexpected published requests %+v", f.queue.published)
	}
	if f.index.countFor("policy") != 0 {
		t.Fatalf("enqueue must not index synchronously")
	}

	res, err := f.uc.IngestStored(context.Background(), f.queue.published[0])
	if err != nil {
		t.Fatalf("ingest stored: %v", err)
	}
	if res.ChunkCount != 2 {
		t.Fatalf("expected 2 chunks, got %d", res.ChunkCount)
	}
	if got := f.registry.log; len(got) != 2 || got[0] != domain.StatusQueued || got[1] != domain.StatusReady {
		t.Fatalf("unexpected status transitions %v", got)
	}
}

func TestEnqueueWithoutQueueIsTemporary(t *testing.T) {
	storage := &storageFake{}
	uc := NewIngestUseCase(storage, &extractorFake{storage: storage}, chunking.NewParagraphChunker(), &embedderFake{}, &indexFake{}, IngestOptions{})

	_, err := uc.Enqueue(context.Background(), "policy.pdf", strings.NewReader("text"))
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestEnqueueKeepsUploadsWithCollidingNamesApart(t *testing.T) {
	f := newIngestFixture(50)
	ctx := context.Background()

	if _, err := f.uc.Enqueue(ctx, "Access Policy.pdf", strings.NewReader("Passwords rotate yearly.")); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if _, err := f.uc.Enqueue(ctx, "Access_Policy.pdf", strings.NewReader("Visitors sign in. Badges worn.")); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if len(f.queue.published) != 2 {
		t.Fatalf("expected 2 published requests, got %d", len(f.queue.published))
	}
	if f.queue.published[0].StorageKey == f.queue.published[1].StorageKey {
		t.Fatalf("uploads share storage key %q", f.queue.published[0].StorageKey)
	}

	for _, req := range f.queue.published {
		if _, err := f.uc.IngestStored(ctx, req); err != nil {
			t.Fatalf("ingest stored %s: %v", req.FileID, err)
		}
	}

	want := map[string]string{
		"Access Policy": "Passwords rotate yearly.",
		"Access_Policy": "Visitors sign in. Badges worn.",
	}
	for _, rec := range f.index.records {
		if text, ok := want[rec.Metadata.FileID]; !ok || rec.Text != text {
			t.Fatalf("file %q indexed text %q", rec.Metadata.FileID, rec.Text)
		}
	}
	if f.index.countFor("Access Policy") != 1 || f.index.countFor("Access_Policy") != 1 {
		t.Fatalf("expected one chunk per file, got %+v", f.index.records)
	}
}
