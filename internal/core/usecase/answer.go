package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

const (
	maxSnippetRunes = 220
	snippetEllipsis = "..."
)

type AnswerUseCase struct {
	retriever *Retriever
	composer  *QueryComposer
	generator ports.Generator
	topK      int
}

func NewAnswerUseCase(
	retriever *Retriever,
	composer *QueryComposer,
	generator ports.Generator,
	topK int,
) *AnswerUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &AnswerUseCase{
		retriever: retriever,
		composer:  composer,
		generator: generator,
		topK:      topK,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, fileID, question string) (*domain.Answer, error) {
	fileID = strings.TrimSpace(fileID)
	question = strings.TrimSpace(question)
	if fileID == "" || question == "" {
		return nil, domain.WrapError(domain.ErrQuery, "answer question", fmt.Errorf("%w: file_id and question are required", domain.ErrInvalidInput))
	}

	ctx, span := tracer.Start(ctx, "answer")
	defer span.End()
	span.SetAttributes(attribute.String("file_id", fileID))

	chunks, err := uc.retriever.Retrieve(ctx, question, fileID, uc.topK)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	match := uc.composer.DetectControl(question)
	prompt := BuildPrompt(question, chunks, match)

	text, err := uc.generator.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		recordSpanError(span, err)
		return nil, domain.WrapError(domain.ErrQuery, "generate answer", err)
	}

	citations := make([]domain.Citation, 0, len(chunks))
	for _, chunk := range chunks {
		citations = append(citations, domain.Citation{
			Page:    chunk.Metadata.Page,
			Snippet: MakeSnippet(chunk.Text),
		})
	}

	answer := &domain.Answer{
		Text:       text,
		ChunksUsed: citations,
	}
	if match.Found {
		answer.ControlID = match.Control.ID
	}
	return answer, nil
}

// MakeSnippet flattens the chunk text and keeps its first sentence, capped at
// 220 runes, followed by an ellipsis.
func MakeSnippet(text string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	snippet := cleaned
	if idx := strings.IndexAny(cleaned, ".!?"); idx >= 0 {
		snippet = cleaned[:idx+1]
	}
	if utf8.RuneCountInString(snippet) > maxSnippetRunes {
		snippet = string([]rune(snippet)[:maxSnippetRunes])
	}
	return snippet + snippetEllipsis
}
