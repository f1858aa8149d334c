package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/infrastructure/restclient"
)

func TestCompleteSendsBearerAndMessages(t *testing.T) {
	var auth string
	var payload chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" answer "}}]}`))
	}))
	defer server.Close()

	gen, err := NewGenerator(Config{APIKey: "key", BaseURL: server.URL, Model: "m"}, nil)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	got, err := gen.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != " answer " {
		t.Fatalf("unexpected answer %q", got)
	}
	if auth != "Bearer key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if payload.Model != "m" || len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen, err := NewGenerator(Config{APIKey: "key", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	_, err = gen.Complete(context.Background(), "", "user")
	if !restclient.IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("expected 429 status error, got %v", err)
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("429 must surface as temporary, got %v", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	gen, _ := NewGenerator(Config{APIKey: "key", BaseURL: server.URL}, nil)
	if _, err := gen.Complete(context.Background(), "", "user"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	if _, err := NewGenerator(Config{}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}
