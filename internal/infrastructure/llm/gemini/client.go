package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/policy-reviewer/internal/infrastructure/resilience"
)

// maxBatchSize is the largest batch BatchEmbedContents accepts.
const maxBatchSize = 100

type Client struct {
	client     *genai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(ctx context.Context, apiKey, genModel, embedModel string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:     client,
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	return c.executor.Do(ctx, operation, fn, classifyAPIError)
}

// classifyAPIError reads the HTTP code that Google API errors expose and
// falls back to the transport rules otherwise.
func classifyAPIError(err error) resilience.ErrorClassification {
	var apiErr interface{ HTTPCode() int }
	if errors.As(err, &apiErr) && apiErr.HTTPCode() > 0 {
		if resilience.RetryableStatus(apiErr.HTTPCode()) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyTransportError(err)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := e.client.client.EmbeddingModel(e.client.embedModel)

	out := make([][]float32, 0, len(texts))
	for _, group := range batches(texts, maxBatchSize) {
		batch := model.NewBatch()
		for _, text := range group {
			batch.AddContent(genai.Text(text))
		}

		var resp *genai.BatchEmbedContentsResponse
		err := e.client.call(ctx, "gemini_embed", func(ctx context.Context) error {
			var err error
			resp, err = model.BatchEmbedContents(ctx, batch)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(resp.Embeddings) != len(group) {
			return nil, fmt.Errorf("gemini embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(group))
		}
		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, errors.New("gemini embed: empty embedding")
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	model := g.client.client.GenerativeModel(g.client.genModel)
	if strings.TrimSpace(systemPrompt) != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	var resp *genai.GenerateContentResponse
	err := g.client.call(ctx, "gemini_generate", func(ctx context.Context) error {
		var err error
		resp, err = model.GenerateContent(ctx, genai.Text(userPrompt))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini generate: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func batches(texts []string, size int) [][]string {
	out := make([][]string, 0, len(texts)/size+1)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
