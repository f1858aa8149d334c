package chunking

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// DefaultMaxWords is the word budget used for policy documents.
const DefaultMaxWords = 250

var (
	blankLine = regexp.MustCompile(`\n[ \t]*\n`)
	wordToken = regexp.MustCompile(`\S+`)
)

// ParagraphChunker folds whole paragraphs into chunks of at most maxWords
// words and falls back to fixed word windows for text without blank-line
// structure.
type ParagraphChunker struct{}

func NewParagraphChunker() *ParagraphChunker {
	return &ParagraphChunker{}
}

// Chunk splits text that carries no page information. Every chunk has a nil page.
func (c *ParagraphChunker) Chunk(text string, maxWords int) ([]domain.Chunk, error) {
	return c.chunk(normalizeNewlines(text), nil, maxWords)
}

// ChunkPages joins per-page text with a newline and chunks the result. A chunk
// gets a page number only when all of its text lies on that page.
func (c *ParagraphChunker) ChunkPages(pages []string, maxWords int) ([]domain.Chunk, error) {
	var b strings.Builder
	starts := make([]int, 0, len(pages))
	for i, page := range pages {
		if i > 0 {
			b.WriteByte('\n')
		}
		starts = append(starts, b.Len())
		b.WriteString(normalizeNewlines(page))
	}
	return c.chunk(b.String(), pageLocator(starts), maxWords)
}

func (c *ParagraphChunker) chunk(text string, pages pageLocator, maxWords int) ([]domain.Chunk, error) {
	if maxWords <= 0 {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"chunk text",
			fmt.Errorf("max words must be positive, got %d", maxWords),
		)
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) < 2 {
		return windowChunks(text, pages, maxWords), nil
	}
	return paragraphChunks(paragraphs, pages, maxWords), nil
}

type paragraph struct {
	words      []string
	start, end int
}

func splitParagraphs(text string) []paragraph {
	bounds := blankLine.FindAllStringIndex(text, -1)
	out := make([]paragraph, 0, len(bounds)+1)

	segStart := 0
	appendSegment := func(segEnd int) {
		locs := wordToken.FindAllStringIndex(text[segStart:segEnd], -1)
		if len(locs) == 0 {
			return
		}
		words := make([]string, 0, len(locs))
		for _, loc := range locs {
			words = append(words, text[segStart+loc[0]:segStart+loc[1]])
		}
		out = append(out, paragraph{
			words: words,
			start: segStart + locs[0][0],
			end:   segStart + locs[len(locs)-1][1],
		})
	}

	for _, b := range bounds {
		appendSegment(b[0])
		segStart = b[1]
	}
	appendSegment(len(text))
	return out
}

func paragraphChunks(paragraphs []paragraph, pages pageLocator, maxWords int) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(paragraphs))

	var (
		words      []string
		indices    []int
		start, end int
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Text: strings.Join(words, " "),
			Metadata: domain.ChunkMetadata{
				ChunkIndex:       len(chunks),
				Page:             pages.pageOfSpan(start, end),
				ParagraphIndices: indices,
			},
		})
		words = nil
		indices = nil
	}

	for idx, p := range paragraphs {
		if len(words)+len(p.words) > maxWords {
			flush()
		}
		if len(words) == 0 {
			start = p.start
		}
		words = append(words, p.words...)
		indices = append(indices, idx)
		end = p.end
	}
	flush()
	return chunks
}

func windowChunks(text string, pages pageLocator, maxWords int) []domain.Chunk {
	locs := wordToken.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []domain.Chunk{}
	}

	chunks := make([]domain.Chunk, 0, len(locs)/maxWords+1)
	for i := 0; i < len(locs); i += maxWords {
		j := i + maxWords
		if j > len(locs) {
			j = len(locs)
		}
		words := make([]string, 0, j-i)
		for _, loc := range locs[i:j] {
			words = append(words, text[loc[0]:loc[1]])
		}
		chunks = append(chunks, domain.Chunk{
			Text: strings.Join(words, " "),
			Metadata: domain.ChunkMetadata{
				ChunkIndex: len(chunks),
				Page:       pages.pageOfSpan(locs[i][0], locs[j-1][1]),
			},
		})
	}
	return chunks
}

// pageLocator holds the byte offset at which every page starts in the joined
// text. A nil locator means page boundaries are unknown.
type pageLocator []int

func (l pageLocator) pageOf(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}

func (l pageLocator) pageOfSpan(start, end int) *int {
	if len(l) == 0 || end <= start {
		return nil
	}
	first := l.pageOf(start)
	if first != l.pageOf(end-1) {
		return nil
	}
	return &first
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
