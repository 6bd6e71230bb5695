package domain

import (
	"context"
	"fmt"
	"strings"
)

// Document types recorded on every chunk.
const (
	DocumentTypePDF  = "pdf"
	DocumentTypeXBRL = "xbrl"
)

// Chunk is a bounded span of document text with the metadata needed to cite it.
// A PDF chunk carries the pages it overlaps; an XBRL chunk carries its taxonomy category.
type Chunk struct {
	Text         string `json:"text"`
	Source       string `json:"source"`
	Pages        []int  `json:"pages,omitempty"`
	Category     string `json:"category,omitempty"`
	DocumentType string `json:"document_type"`
	Index        int    `json:"index"`
	FactCount    int    `json:"fact_count,omitempty"`
}

// Location renders the page range or category of the chunk.
func (c Chunk) Location() string {
	switch {
	case len(c.Pages) == 1:
		return fmt.Sprintf("page %d", c.Pages[0])
	case len(c.Pages) > 1:
		return fmt.Sprintf("pages %d-%d", c.Pages[0], c.Pages[len(c.Pages)-1])
	default:
		return c.Category
	}
}

// SearchResult represents a matching chunk with its cosine similarity.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Source is the citation of a chunk that was placed in a generation prompt.
type Source struct {
	Chunk   Chunk   `json:"chunk"`
	Score   float64 `json:"similarity_score"`
	Preview string  `json:"text_preview"`
}

// Answer is the result of asking one question. It is never persisted.
type Answer struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Confidence  float64  `json:"confidence"`
	Sources     []Source `json:"sources"`
	ContextUsed int      `json:"context_used"`
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator turns a prompt into free text. It is the only contact with a language model.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Preview returns the first n runes of text, marking the cut with "...".
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
