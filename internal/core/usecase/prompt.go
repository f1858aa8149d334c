package usecase

import (
	"strings"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

const (
	// SystemPrompt frames the generator for every policy question.
	SystemPrompt = "You are an ISO27001 assistant."

	RefusalSentence      = "Not mentioned clearly in this policy."
	NoFragmentsFallback  = "None."
	NoMissingItemsNotice = "Not enough information to determine missing items."

	contextDelimiter = "\n\n---\n\n"
)

// BuildPrompt assembles the grounding instructions, the optional reference
// control and the retrieved context. Chunks are used in the given order.
func BuildPrompt(question string, chunks []domain.RetrievedChunk, match domain.ControlMatch) string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}

	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\nYou MUST:\n")
	b.WriteString("- Answer ONLY using the Context below.\n")
	b.WriteString("- If the answer is not clearly supported by the Context, say exactly:\n")
	b.WriteString("  \"" + RefusalSentence + "\"\n")
	b.WriteString("- Quote exact sentences from the Context for \"Relevant text fragments\". Copy them verbatim, never paraphrase.\n")
	b.WriteString("- Do NOT invent or hallucinate policy text.\n")

	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n")

	if match.Found {
		c := match.Control
		b.WriteString("\nReference control (not part of the policy, use only to interpret the question):\n")
		b.WriteString("ISO Control: " + c.ID + " - " + c.Title + "\n")
		b.WriteString("Description: " + c.Description + "\n")
	}

	b.WriteString("\nContext:\n")
	b.WriteString(strings.Join(texts, contextDelimiter))
	b.WriteString("\n\n---\n")

	b.WriteString("Answer in this exact structure:\n\n")
	b.WriteString("Summary:\n")
	b.WriteString("[1-3 sentences summarizing what the policy says or that it's not mentioned.]\n\n")
	b.WriteString("Relevant text fragments:\n")
	b.WriteString("- \"quote 1 from context\"\n")
	b.WriteString("- \"quote 2 from context\"\n")
	b.WriteString("(if nothing is relevant, say \"" + NoFragmentsFallback + "\")\n\n")
	b.WriteString("Potential missing items:\n")
	b.WriteString("- item 1 (only if clearly not addressed in the context)\n")
	b.WriteString("- item 2\n")
	b.WriteString("(or say \"" + NoMissingItemsNotice + "\")\n")
	return b.String()
}
