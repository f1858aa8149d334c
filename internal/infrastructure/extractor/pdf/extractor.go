package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

// Extractor returns the plain text of every PDF page. A page that cannot be
// decoded contributes an empty string; a file that cannot be opened as a PDF
// is an error.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, storageKey, filename string) ([]string, error) {
	reader, err := e.storage.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return ExtractPages(raw, filename)
}

// ExtractPages decodes an in-memory PDF.
func ExtractPages(raw []byte, filename string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse pdf %s: %v", filename, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf %s: %w", filename, err)
	}

	return collectPages(r.NumPage(), func(num int) (string, error) {
		page := r.Page(num)
		if page.V.IsNull() {
			return "", nil
		}
		return page.GetPlainText(nil)
	}, filename), nil
}

// collectPages reads pages 1..total. A page whose reader fails or panics
// yields "" and the remaining pages are still read.
func collectPages(total int, read func(num int) (string, error), filename string) []string {
	pages := make([]string, 0, total)
	for num := 1; num <= total; num++ {
		pages = append(pages, pageText(read, num, filename))
	}
	return pages
}

func pageText(read func(num int) (string, error), num int, filename string) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("pdf_page_unreadable", "filename", filename, "page", num, "error", fmt.Sprint(rec))
			text = ""
		}
	}()

	text, err := read(num)
	if err != nil {
		slog.Warn("pdf_page_unreadable", "filename", filename, "page", num, "error", err)
		return ""
	}
	return text
}
