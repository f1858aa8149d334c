package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/policy-reviewer/internal/config"
	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
	"github.com/kirillkom/policy-reviewer/internal/observability/metrics"
)

var defaultExtensions = []string{".md", ".pdf", ".txt"}

type Router struct {
	cfg        config.Config
	ingestor   ports.DocumentIngestor
	answerer   ports.PolicyQuestionAnswerer
	docs       ports.DocumentReader
	metrics    *metrics.HTTPServerMetrics
	fileTypes  ports.FileTypes
	health     func() map[string]string
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithFileTypes restricts uploads to what the extractor can read.
func WithFileTypes(ft ports.FileTypes) Option {
	return func(rt *Router) {
		if ft != nil {
			rt.fileTypes = ft
		}
	}
}

// WithHealthDetail adds collaborator states to /healthz.
func WithHealthDetail(detail func() map[string]string) Option {
	return func(rt *Router) { rt.health = detail }
}

// NewRouter builds the HTTP surface. docs may be nil when no document
// registry is configured.
func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	answerer ports.PolicyQuestionAnswerer,
	docs ports.DocumentReader,
	opts ...Option,
) *Router {
	rt := &Router{
		cfg:        cfg,
		ingestor:   ingestor,
		answerer:   answerer,
		docs:       docs,
		fileTypes:  extensionSet(defaultExtensions),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("POST /v1/ingest", rt.ingestDocument)
	mux.HandleFunc("POST /v1/query", rt.queryPolicy)
	mux.HandleFunc("GET /v1/documents/{file_id}", rt.getDocument)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName(), handler)
	}
	handler = corsMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.health != nil {
		if detail := rt.health(); len(detail) > 0 {
			body["breakers"] = detail
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}

type queuedResponse struct {
	FileID   string                `json:"file_id"`
	Filename string                `json:"filename"`
	Status   domain.DocumentStatus `json:"status"`
}

func (rt *Router) ingestDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIMaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if !rt.fileTypes.Supports(fileHeader.Filename) {
		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported file type %q, expected one of %s", ext, strings.Join(rt.fileTypes.Extensions(), ", ")),
		})
		return
	}

	async := false
	if raw := r.URL.Query().Get("async"); raw != "" {
		async, err = strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'async' must be a boolean"})
			return
		}
	}

	if async {
		doc, err := rt.ingestor.Enqueue(r.Context(), fileHeader.Filename, file)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{
			FileID:   doc.FileID,
			Filename: doc.Filename,
			Status:   doc.Status,
		})
		return
	}

	start := time.Now()
	result, err := rt.ingestor.Ingest(r.Context(), fileHeader.Filename, file)
	if rt.metrics != nil {
		chunks := 0
		if result != nil {
			chunks = result.ChunkCount
		}
		rt.metrics.RecordIngest(rt.serviceName(), chunks, time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) queryPolicy(w http.ResponseWriter, r *http.Request) {
	if err := validateRequest(r); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		FileID   string `json:"file_id"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), req.FileID, req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(rt.serviceName(), "/v1/query", len(answer.ChunksUsed), time.Since(start))
		rt.metrics.RecordControlDetected(rt.serviceName(), answer.ControlID)
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	if rt.docs == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "document registry is not configured"})
		return
	}

	fileID := strings.TrimSpace(r.PathValue("file_id"))
	if fileID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file_id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) serviceName() string {
	if rt.cfg.ServiceName == "" {
		return "policy-api"
	}
	return rt.cfg.ServiceName
}

type extensionSet []string

func (s extensionSet) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, known := range s {
		if known == ext {
			return true
		}
	}
	return false
}

func (s extensionSet) Extensions() []string { return s }

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
