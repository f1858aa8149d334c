package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// Index is an in-process vector index using brute-force cosine similarity.
// It is meant for the CLI, the MCP server and tests.
type Index struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	entries   map[string]entry
}

type entry struct {
	vector  []float32
	norm    float64
	text    string
	payload map[string]any
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]entry)}
}

func (s *Index) Upsert(_ context.Context, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if len(rec.Vector) == 0 {
			return fmt.Errorf("memory upsert: empty vector for %s", rec.ID)
		}
		if s.dimension == 0 {
			s.dimension = len(rec.Vector)
		}
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("memory upsert: vector dimension mismatch for %s: %d/%d", rec.ID, len(rec.Vector), s.dimension)
		}
	}

	for _, rec := range records {
		if _, exists := s.entries[rec.ID]; !exists {
			s.order = append(s.order, rec.ID)
		}
		s.entries[rec.ID] = entry{
			vector:  append([]float32(nil), rec.Vector...),
			norm:    norm(rec.Vector),
			text:    rec.Text,
			payload: rec.Metadata.Scalars(),
		}
	}
	return nil
}

// Query returns the k most similar entries matching filter, nearest first.
// Ties keep insertion order.
func (s *Index) Query(_ context.Context, vector []float32, k int, filter domain.Filter) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return []domain.RetrievedChunk{}, nil
	}

	qnorm := norm(vector)
	out := make([]domain.RetrievedChunk, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if !matches(e.payload, filter) {
			continue
		}
		out = append(out, domain.RetrievedChunk{
			ID:       id,
			Text:     e.text,
			Metadata: domain.MetadataFromScalars(e.payload),
			Score:    cosine(e.vector, e.norm, vector, qnorm),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Index) Delete(_ context.Context, filter domain.Filter) error {
	if filter.FileID == "" {
		return fmt.Errorf("memory delete: refusing to delete without a file_id filter")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if matches(s.entries[id].payload, filter) {
			delete(s.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	if len(s.order) == 0 {
		s.dimension = 0
	}
	return nil
}

// Len reports the number of stored entries.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func matches(payload map[string]any, filter domain.Filter) bool {
	if filter.FileID == "" {
		return true
	}
	v, ok := payload[domain.MetaFileID].(string)
	return ok && v == filter.FileID
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	dot := 0.0
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
