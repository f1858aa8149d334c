package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/policy-reviewer/internal/config"
	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

func newRouterForIngestTests(ingestor *ingestorFake) http.Handler {
	return NewRouter(
		config.Config{RAGTopK: 5},
		ingestor,
		&answererFake{},
		docsFake{},
	).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newRouterForIngestTests(&ingestorFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHealthzReportsBreakerStates(t *testing.T) {
	handler := NewRouter(
		config.Config{RAGTopK: 5},
		&ingestorFake{},
		&answererFake{},
		docsFake{},
		WithHealthDetail(func() map[string]string {
			return map[string]string{"ollama_embed": "open"}
		}),
	).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Status   string            `json:"status"`
		Breakers map[string]string `json:"breakers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" || body.Breakers["ollama_embed"] != "open" {
		t.Fatalf("unexpected health body %+v", body)
	}
}

type markdownOnly struct{}

func (markdownOnly) Supports(filename string) bool { return strings.HasSuffix(filename, ".md") }
func (markdownOnly) Extensions() []string          { return []string{".md"} }

func TestIngestDocumentUsesConfiguredFileTypes(t *testing.T) {
	ingestor := &ingestorFake{}
	handler := NewRouter(
		config.Config{RAGTopK: 5},
		ingestor,
		&answererFake{},
		docsFake{},
		WithFileTypes(markdownOnly{}),
	).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, newUploadRequest(t, "/v1/ingest", "policy.pdf", "%PDF-1.4"))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if ingestor.gotFilename != "" {
		t.Fatalf("ingestor must not be called")
	}
	if !strings.Contains(res.Body.String(), ".md") {
		t.Fatalf("expected configured extensions in error: %s", res.Body.String())
	}
}

func TestIngestDocumentSuccess(t *testing.T) {
	ingestor := &ingestorFake{}
	handler := newRouterForIngestTests(ingestor)

	req := newUploadRequest(t, "/v1/ingest", "policy_v2.pdf", "%PDF-1.4")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["file_id"] != "policy_v2" || resp["filename"] != "policy_v2.pdf" || resp["n_chunks"] != float64(4) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if ingestor.gotBody != "%PDF-1.4" {
		t.Fatalf("unexpected body passed to ingestor: %q", ingestor.gotBody)
	}
}

func TestIngestDocumentAsyncReturns202(t *testing.T) {
	ingestor := &ingestorFake{}
	handler := newRouterForIngestTests(ingestor)

	req := newUploadRequest(t, "/v1/ingest?async=true", "notes.md", "# Access control")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if ingestor.enqueueCalls != 1 {
		t.Fatalf("expected enqueue to be called once, got %d", ingestor.enqueueCalls)
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != string(domain.StatusQueued) || resp["file_id"] != "policy_v2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if _, ok := resp["storage_key"]; ok {
		t.Fatalf("queued response must not expose storage key: %+v", resp)
	}
}

func TestIngestDocumentAsyncWithoutQueueReturns503(t *testing.T) {
	ingestor := &ingestorFake{err: domain.WrapError(domain.ErrTemporary, "enqueue document", errors.New("queue is not configured"))}
	handler := newRouterForIngestTests(ingestor)

	req := newUploadRequest(t, "/v1/ingest?async=1", "policy.txt", "text")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestIngestDocumentRejectsBadAsyncFlag(t *testing.T) {
	handler := newRouterForIngestTests(&ingestorFake{})

	req := newUploadRequest(t, "/v1/ingest?async=maybe", "policy.txt", "text")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestIngestDocumentRejectsUnsupportedExtension(t *testing.T) {
	ingestor := &ingestorFake{}
	handler := newRouterForIngestTests(ingestor)

	req := newUploadRequest(t, "/v1/ingest", "policy.docx", "binary")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if ingestor.gotFilename != "" {
		t.Fatalf("ingestor must not be called for unsupported files")
	}
	if !strings.Contains(res.Body.String(), ".pdf") {
		t.Fatalf("expected supported extensions in error: %s", res.Body.String())
	}
}

func TestIngestDocumentMissingMultipartField(t *testing.T) {
	handler := newRouterForIngestTests(&ingestorFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestIngestDocumentRejectsOversizedUpload(t *testing.T) {
	handler := NewRouter(
		config.Config{APIMaxUploadBytes: 64},
		&ingestorFake{},
		&answererFake{},
		docsFake{},
	).Handler()

	req := newUploadRequest(t, "/v1/ingest", "policy.txt", strings.Repeat("a", 4096))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestIngestDocumentMapsIngestionErrorTo500(t *testing.T) {
	ingestor := &ingestorFake{err: domain.WrapError(domain.ErrIngestion, "embed chunks", errors.New("connection refused"))}
	handler := newRouterForIngestTests(ingestor)

	req := newUploadRequest(t, "/v1/ingest", "policy.pdf", "%PDF")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "connection refused") {
		t.Fatalf("expected collaborator message in error body: %s", res.Body.String())
	}
}
