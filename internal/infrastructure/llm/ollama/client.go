// Package ollama embeds chunks and completes prompts against a local Ollama
// server over its REST API.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/policy-reviewer/internal/infrastructure/resilience"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/restclient"
)

type Client struct {
	rest       *restclient.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

// New returns an Ollama client. A nil executor runs every call once
// without a circuit breaker.
func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		rest:       restclient.New("ollama", baseURL, restclient.WithTimeout(120*time.Second)),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}
}

func (c *Client) post(ctx context.Context, operation, path string, payload, out any) error {
	return c.executor.Do(ctx, "ollama_"+operation, func(ctx context.Context) error {
		return c.rest.DoJSON(ctx, http.MethodPost, path, payload, out, operation)
	}, resilience.ClassifyTransportError)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	req := embedRequest{Model: e.client.embedModel, Input: texts}
	if err := e.client.post(ctx, "embed", "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("ollama embed: empty result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Complete sends one non-streaming chat turn with the system prompt as the
// first message.
func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{Model: g.client.genModel}
	if strings.TrimSpace(systemPrompt) != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: userPrompt})

	var resp struct {
		Message chatMessage `json:"message"`
	}
	if err := g.client.post(ctx, "chat", "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
