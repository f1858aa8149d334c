package usecase

import (
	"strings"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
	"github.com/kirillkom/policy-reviewer/internal/core/ports"
)

// ComposedQuery is the retrieval query derived from a user question.
type ComposedQuery struct {
	Text  string
	Match domain.ControlMatch
}

// QueryComposer augments questions that mention a catalog control with the
// control's official wording.
type QueryComposer struct {
	catalog ports.ControlCatalog
}

func NewQueryComposer(catalog ports.ControlCatalog) *QueryComposer {
	return &QueryComposer{catalog: catalog}
}

// DetectControl returns the first catalog control, in ascending id order,
// whose id occurs verbatim in the question.
func (c *QueryComposer) DetectControl(question string) domain.ControlMatch {
	if c.catalog == nil {
		return domain.NoControl()
	}
	for _, id := range c.catalog.IDs() {
		if id == "" || !strings.Contains(question, id) {
			continue
		}
		control, ok := c.catalog.Lookup(id)
		if !ok {
			continue
		}
		return domain.MatchedControl(control)
	}
	return domain.NoControl()
}

func (c *QueryComposer) Compose(question string) ComposedQuery {
	match := c.DetectControl(question)
	if !match.Found {
		return ComposedQuery{Text: question, Match: match}
	}

	var b strings.Builder
	b.WriteString(question)
	b.WriteString(" ")
	b.WriteString(match.Control.Description)
	if len(match.Control.KeyRequirements) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(match.Control.KeyRequirements, " "))
	}
	return ComposedQuery{Text: b.String(), Match: match}
}
