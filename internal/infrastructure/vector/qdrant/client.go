package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/resilience"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/restclient"
)

const payloadText = "text"

type Client struct {
	rest       *restclient.Client
	collection string
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

// New returns a Qdrant REST client. A nil executor runs every call once
// without a circuit breaker.
func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		rest:       restclient.New("qdrant", baseURL),
		collection: collection,
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	size := len(records[0].Vector)
	for _, rec := range records {
		if len(rec.Vector) != size {
			return fmt.Errorf("qdrant upsert: vector size mismatch for %s: %d/%d", rec.ID, len(rec.Vector), size)
		}
	}

	if err := c.ensureCollection(ctx, size); err != nil {
		return err
	}

	points := make([]point, 0, len(records))
	for _, rec := range records {
		payload := rec.Metadata.Scalars()
		payload[payloadText] = rec.Text
		payload[domain.MetaChunkID] = rec.ID
		points = append(points, point{
			ID:      PointID(rec.ID),
			Vector:  rec.Vector,
			Payload: payload,
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.call(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return []domain.RetrievedChunk{}, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.call(ctx, http.MethodPost, path, reqBody, &searchResp, "search")
	if restclient.IsStatus(err, http.StatusNotFound) {
		return []domain.RetrievedChunk{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			ID:       getStringPayload(r.Payload, domain.MetaChunkID),
			Text:     getStringPayload(r.Payload, payloadText),
			Metadata: domain.MetadataFromScalars(r.Payload),
			Score:    r.Score,
		})
	}
	return out, nil
}

// Delete removes every point matching filter. A missing collection has
// nothing to delete.
func (c *Client) Delete(ctx context.Context, filter domain.Filter) error {
	f := buildFilter(filter)
	if f == nil {
		return fmt.Errorf("qdrant delete: refusing to delete without a file_id filter")
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	err := c.call(ctx, http.MethodPost, path, map[string]any{"filter": f}, nil, "delete")
	if restclient.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// PointID maps a chunk id to the UUID Qdrant requires. The mapping is stable
// so re-ingesting a chunk overwrites its point.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func buildFilter(filter domain.Filter) map[string]any {
	if strings.TrimSpace(filter.FileID) == "" {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{
				"key": domain.MetaFileID,
				"match": map[string]any{
					"value": filter.FileID,
				},
			},
		},
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.call(ctx, http.MethodPut, path, reqBody, nil, "ensure_collection")
	// 409 when the collection already exists.
	if err != nil && !restclient.IsStatus(err, http.StatusConflict) {
		return err
	}

	if err := c.ensurePayloadIndex(ctx); err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) ensurePayloadIndex(ctx context.Context) error {
	reqBody := map[string]any{
		"field_name":   domain.MetaFileID,
		"field_schema": "keyword",
	}
	path := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
	err := c.call(ctx, http.MethodPut, path, reqBody, nil, "ensure_index")
	if err != nil && !restclient.IsStatus(err, http.StatusConflict) {
		return err
	}
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any, operation string) error {
	return c.executor.Do(ctx, "qdrant_"+operation, func(ctx context.Context) error {
		return c.rest.DoJSON(ctx, method, path, payload, out, operation)
	}, resilience.ClassifyTransportError)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
