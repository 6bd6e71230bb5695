package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/domain"
)

type stubRetriever struct {
	results []domain.SearchResult
	err     error
	gotK    int
}

func (s *stubRetriever) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.results) {
		return s.results[:k], nil
	}
	return s.results, nil
}

type stubGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

func results() []domain.SearchResult {
	return []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "Total net sales were $391,035 million.", Source: "/filings/10k.pdf", Pages: []int{1}, DocumentType: domain.DocumentTypePDF}, Score: 0.9},
		{Chunk: domain.Chunk{Text: "Financial Data - US-GAAP Category:\n\nRevenues:\n  - Value: 391035000000 (usd) [Context: FY2024]", Source: "aapl.xml", Category: "us-gaap", DocumentType: domain.DocumentTypeXBRL}, Score: 0.6},
		{Chunk: domain.Chunk{Text: "Services revenue grew 13 percent.", Source: "10k.pdf", Pages: []int{2, 3}, DocumentType: domain.DocumentTypePDF}, Score: 0.3},
	}
}

func TestAnswer(t *testing.T) {
	gen := &stubGenerator{answer: "Revenue was $391.0 billion."}
	p := New(&stubRetriever{results: results()}, gen, Config{TopK: 5}, nil)

	ans, err := p.Answer(context.Background(), "  What was total revenue? ", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, ans.ID)
	assert.Equal(t, "What was total revenue?", ans.Question)
	assert.Equal(t, "Revenue was $391.0 billion.", ans.Answer)
	assert.InDelta(t, 0.6, ans.Confidence, 1e-9)
	assert.Equal(t, 3, ans.ContextUsed)
	require.Len(t, ans.Sources, 3)
	assert.Equal(t, 0.9, ans.Sources[0].Score)
	assert.Equal(t, "us-gaap", ans.Sources[1].Chunk.Category)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, Preamble))
	assert.Contains(t, prompt, "[Context 1] Source: 10k.pdf | Page: 1 | Type: PDF\nTotal net sales")
	assert.Contains(t, prompt, "[Context 2] Source: aapl.xml | Category: us-gaap | Type: XBRL\n")
	assert.Contains(t, prompt, "[Context 3] Source: 10k.pdf | Page: 2-3 | Type: PDF\n")
	assert.True(t, strings.HasSuffix(prompt, "Question: What was total revenue?\n\nAnswer:"))
}

func TestAnswer_UsesConfiguredTopK(t *testing.T) {
	r := &stubRetriever{results: results()}
	p := New(r, &stubGenerator{answer: "ok"}, Config{TopK: 2}, nil)

	ans, err := p.Answer(context.Background(), "revenue?", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, r.gotK)
	assert.Equal(t, 2, ans.ContextUsed)

	_, err = p.Answer(context.Background(), "revenue?", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.gotK)
}

func TestAnswer_NoResults(t *testing.T) {
	gen := &stubGenerator{answer: "unused"}
	p := New(&stubRetriever{}, gen, Config{}, nil)

	ans, err := p.Answer(context.Background(), "What was revenue?", 3)
	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, ans.Answer)
	assert.Zero(t, ans.Confidence)
	assert.Zero(t, ans.ContextUsed)
	assert.Empty(t, ans.Sources)
	assert.Empty(t, gen.prompts)
}

func TestAnswer_DropsWeakestChunksFirst(t *testing.T) {
	q := "What was revenue?"
	limit := utf8.RuneCountInString(render(Preamble, q, results()[:2]))
	gen := &stubGenerator{answer: "ok"}
	p := New(&stubRetriever{results: results()}, gen, Config{MaxContextChars: limit}, nil)

	ans, err := p.Answer(context.Background(), q, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, ans.ContextUsed)
	assert.InDelta(t, 0.75, ans.Confidence, 1e-9)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, 0.6, ans.Sources[1].Score)
	assert.LessOrEqual(t, utf8.RuneCountInString(gen.prompts[0]), limit)
	assert.NotContains(t, gen.prompts[0], "Services revenue")
}

func TestAnswer_CutsBestChunk(t *testing.T) {
	q := "What was revenue?"
	empty := results()[:1]
	empty[0].Chunk.Text = ""
	limit := utf8.RuneCountInString(render(Preamble, q, empty)) + 10

	gen := &stubGenerator{answer: "ok"}
	p := New(&stubRetriever{results: results()}, gen, Config{MaxContextChars: limit}, nil)

	ans, err := p.Answer(context.Background(), q, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, ans.ContextUsed)
	assert.InDelta(t, 0.9, ans.Confidence, 1e-9)
	assert.Equal(t, limit, utf8.RuneCountInString(gen.prompts[0]))
	assert.Contains(t, gen.prompts[0], "\nTotal net \n")
}

func TestAnswer_NothingFits(t *testing.T) {
	gen := &stubGenerator{answer: "unused"}
	p := New(&stubRetriever{results: results()}, gen, Config{MaxContextChars: 50}, nil)

	ans, err := p.Answer(context.Background(), "What was revenue?", 3)
	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, ans.Answer)
	assert.Zero(t, ans.Confidence)
	assert.Empty(t, gen.prompts)
}

func TestAnswer_Errors(t *testing.T) {
	t.Run("generator", func(t *testing.T) {
		cause := errors.New("rate limited")
		p := New(&stubRetriever{results: results()}, &stubGenerator{err: cause}, Config{}, nil)
		_, err := p.Answer(context.Background(), "revenue?", 3)
		assert.ErrorIs(t, err, domain.ErrGeneration)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("retriever", func(t *testing.T) {
		p := New(&stubRetriever{err: domain.ErrEmptyIndex}, &stubGenerator{}, Config{}, nil)
		_, err := p.Answer(context.Background(), "revenue?", 3)
		assert.ErrorIs(t, err, domain.ErrEmptyIndex)
	})

	t.Run("empty question", func(t *testing.T) {
		p := New(&stubRetriever{results: results()}, &stubGenerator{}, Config{}, nil)
		_, err := p.Answer(context.Background(), " \n", 3)
		assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	})
}

func TestAnswer_SourcePreview(t *testing.T) {
	long := []domain.SearchResult{{Chunk: domain.Chunk{Text: strings.Repeat("x", 250), Source: "a.pdf", Pages: []int{1}}, Score: 0.5}}
	p := New(&stubRetriever{results: long}, &stubGenerator{answer: "ok"}, Config{}, nil)

	ans, err := p.Answer(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 200)+"...", ans.Sources[0].Preview)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"mean", []float64{0.8, 0.4}, 0.6},
		{"negative clamps to zero", []float64{-0.5, -0.1}, 0},
		{"above one clamps", []float64{1.0000001, 1.0000003}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := make([]domain.SearchResult, len(tt.scores))
			for i, s := range tt.scores {
				rs[i].Score = s
			}
			assert.InDelta(t, tt.want, confidence(rs), 1e-9)
		})
	}
}
