// Package extractor dispatches text extraction on the uploaded file's
// extension.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/extractor/plaintext"
)

var _ ports.FileTypes = (*Router)(nil)

type Router struct {
	byExt map[string]ports.TextExtractor
}

// NewRouter returns a router handling .pdf, .txt and .md documents.
func NewRouter(storage ports.ObjectStorage) *Router {
	text := plaintext.NewExtractor(storage)
	return &Router{byExt: map[string]ports.TextExtractor{
		".pdf": pdf.NewExtractor(storage),
		".txt": text,
		".md":  text,
	}}
}

func (r *Router) Supports(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func (r *Router) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Router) Extract(ctx context.Context, storageKey, filename string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported file type %q", ext))
	}
	return e.Extract(ctx, storageKey, filename)
}
