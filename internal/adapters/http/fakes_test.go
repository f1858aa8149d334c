package httpadapter

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

type ingestorFake struct {
	err          error
	gotFilename  string
	gotBody      string
	enqueueCalls int
}

func (f *ingestorFake) Ingest(_ context.Context, filename string, body io.Reader) (*domain.IngestResult, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotFilename = filename
	f.gotBody = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestResult{FileID: "policy_v2", Filename: filename, ChunkCount: 4}, nil
}

func (f *ingestorFake) Enqueue(_ context.Context, filename string, body io.Reader) (*domain.PolicyDocument, error) {
	f.enqueueCalls++
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	f.gotFilename = filename
	if f.err != nil {
		return nil, f.err
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.PolicyDocument{
		FileID:     "policy_v2",
		Filename:   filename,
		StorageKey: filename,
		Status:     domain.StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

type answererFake struct {
	answer      *domain.Answer
	err         error
	gotFileID   string
	gotQuestion string
}

func (f *answererFake) Answer(_ context.Context, fileID, question string) (*domain.Answer, error) {
	f.gotFileID = fileID
	f.gotQuestion = question
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	page := 2
	return &domain.Answer{
		Text:       "Access is reviewed quarterly.",
		ChunksUsed: []domain.Citation{{Page: &page, Snippet: "Access is reviewed quarterly."}},
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, fileID string) (*domain.PolicyDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PolicyDocument{
		FileID:     fileID,
		Filename:   fileID + ".pdf",
		StorageKey: fileID + ".pdf",
		ChunkCount: 4,
		Status:     domain.StatusReady,
	}, nil
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func newUploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req, err := http.NewRequest(http.MethodPost, target, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req
}
