package usecase

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

type catalogFake struct {
	controls map[string]domain.Control
}

func newCatalogFake(controls ...domain.Control) *catalogFake {
	m := make(map[string]domain.Control, len(controls))
	for _, c := range controls {
		m[c.ID] = c
	}
	return &catalogFake{controls: m}
}

func (f *catalogFake) Lookup(id string) (domain.Control, bool) {
	c, ok := f.controls[id]
	return c, ok
}

func (f *catalogFake) IDs() []string {
	ids := make([]string, 0, len(f.controls))
	for id := range f.controls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func physicalControl() domain.Control {
	return domain.Control{
		ID:              "A.7",
		Title:           "Physical controls",
		Description:     "Protect facilities and equipment.",
		KeyRequirements: []string{"secure areas", "equipment siting"},
	}
}

type embedderFake struct {
	mu         sync.Mutex
	queries    []string
	batches    [][]string
	err        error
	queryErr   error
	dropVector bool
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	if f.dropVector && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.queries = append(f.queries, text)
	return []float32{float32(len(text)), 1}, nil
}

// indexFake keeps records per file in insertion order and returns them in
// that order for every query.
type indexFake struct {
	mu        sync.Mutex
	records   []domain.IndexRecord
	deletes   []string
	queryErr  error
	deleteErr error
	upsertErr error
	leak      []domain.RetrievedChunk
}

func (f *indexFake) Upsert(_ context.Context, records []domain.IndexRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, rec := range records {
		replaced := false
		for i := range f.records {
			if f.records[i].ID == rec.ID {
				f.records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			f.records = append(f.records, rec)
		}
	}
	return nil
}

func (f *indexFake) Query(_ context.Context, _ []float32, k int, filter domain.Filter) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := append([]domain.RetrievedChunk(nil), f.leak...)
	for _, rec := range f.records {
		if rec.Metadata.FileID != filter.FileID {
			continue
		}
		if len(out) >= k {
			break
		}
		out = append(out, domain.RetrievedChunk{
			ID:       rec.ID,
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Score:    1,
		})
	}
	return out, nil
}

func (f *indexFake) Delete(_ context.Context, filter domain.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, filter.FileID)
	kept := f.records[:0]
	for _, rec := range f.records {
		if rec.Metadata.FileID != filter.FileID {
			kept = append(kept, rec)
		}
	}
	f.records = kept
	return nil
}

func (f *indexFake) countFor(fileID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.records {
		if rec.Metadata.FileID == fileID {
			n++
		}
	}
	return n
}

func (f *indexFake) seed(fileID string, texts ...string) {
	for i, text := range texts {
		_ = f.Upsert(context.Background(), []domain.IndexRecord{{
			ID:       domain.ChunkID(fileID, i),
			Text:     text,
			Metadata: domain.ChunkMetadata{FileID: fileID, ChunkIndex: i},
		}})
	}
}

type generatorFake struct {
	system string
	prompt string
	answer string
	err    error
}

func (f *generatorFake) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.system = systemPrompt
	f.prompt = userPrompt
	return f.answer, nil
}

type storageFake struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// extractorFake splits the stored body on form feeds into pages.
type extractorFake struct {
	storage *storageFake
	err     error
}

func (f *extractorFake) Extract(ctx context.Context, storageKey, _ string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	rc, err := f.storage.Open(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(raw), "\f"), nil
}

type registryFake struct {
	mu   sync.Mutex
	docs map[string]domain.PolicyDocument
	log  []domain.DocumentStatus
	err  error
}

func (f *registryFake) Upsert(_ context.Context, doc *domain.PolicyDocument) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = map[string]domain.PolicyDocument{}
	}
	f.docs[doc.FileID] = *doc
	f.log = append(f.log, doc.Status)
	return nil
}

func (f *registryFake) GetByID(_ context.Context, fileID string) (*domain.PolicyDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[fileID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

type queueFake struct {
	published []domain.IngestRequest
	err       error
}

func (f *queueFake) PublishIngest(_ context.Context, req domain.IngestRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *queueFake) SubscribeIngest(context.Context, func(context.Context, domain.IngestRequest) error) error {
	return errors.New("not implemented")
}
