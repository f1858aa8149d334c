// Package plaintext extracts pages from UTF-8 text and Markdown policies.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

const pageBreak = "\f"

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Extractor treats form feeds as page breaks. Text without them is one page.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, storageKey, filename string) ([]string, error) {
	rc, err := e.storage.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return pages(raw, filename)
}

func pages(raw []byte, filename string) ([]string, error) {
	raw = bytes.TrimPrefix(raw, byteOrderMark)
	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract "+filename, fmt.Errorf("not valid UTF-8 text"))
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	return strings.Split(text, pageBreak), nil
}
