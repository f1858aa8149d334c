package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"canceled", context.Canceled, ErrorClassification{}},
		{"deadline", fmt.Errorf("embed: %w", context.DeadlineExceeded), ErrorClassification{}},
		{"breaker open", gobreaker.ErrOpenState, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"429", statusErr(http.StatusTooManyRequests), ErrorClassification{Retryable: true, RecordFailure: true}},
		{"503 wrapped", fmt.Errorf("chat: %w", statusErr(http.StatusServiceUnavailable)), ErrorClassification{Retryable: true, RecordFailure: true}},
		{"404", statusErr(http.StatusNotFound), ErrorClassification{}},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"other", errors.New("decode failed"), ErrorClassification{RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTransportError(tt.err); got != tt.want {
				t.Fatalf("ClassifyTransportError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWrapTemporary(t *testing.T) {
	if err := WrapTemporary("chat", statusErr(http.StatusBadRequest), ClassifyTransportError); errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("400 must stay permanent, got %v", err)
	}
	if err := WrapTemporary("chat", statusErr(http.StatusBadGateway), ClassifyTransportError); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("502 must become temporary, got %v", err)
	}
	if err := WrapTemporary("chat", gobreaker.ErrTooManyRequests, nil); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("half-open rejection must become temporary, got %v", err)
	}
	already := domain.WrapError(domain.ErrTemporary, "embed", errFlaky)
	if got := WrapTemporary("chat", already, ClassifyTransportError); got != already {
		t.Fatalf("already temporary errors must pass through unchanged")
	}
}
