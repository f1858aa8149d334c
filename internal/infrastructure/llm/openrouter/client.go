// Package openrouter generates answers through the OpenAI-compatible
// chat completions API exposed by OpenRouter.
package openrouter

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

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Generator struct {
	rest     *restclient.Client
	model    string
	executor *resilience.Executor
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGenerator(cfg Config, executor *resilience.Executor) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Generator{
		rest: restclient.New("openrouter", cfg.BaseURL,
			restclient.WithTimeout(cfg.Timeout),
			restclient.WithBearerToken(cfg.APIKey),
		),
		model:    cfg.Model,
		executor: executor,
	}, nil
}

func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatCompletionRequest{Model: g.model}
	if strings.TrimSpace(systemPrompt) != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: userPrompt})

	var resp chatCompletionResponse
	err := g.executor.Do(ctx, "openrouter_chat", func(ctx context.Context) error {
		return g.rest.DoJSON(ctx, http.MethodPost, "/chat/completions", req, &resp, "chat")
	}, resilience.ClassifyTransportError)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openrouter error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
