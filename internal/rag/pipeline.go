package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"finqa/internal/domain"
	"finqa/internal/logging"
)

// NoInformationAnswer is returned when nothing relevant could be retrieved.
const NoInformationAnswer = "I couldn't find any relevant information in the documents to answer your question."

const (
	defaultTopK   = 5
	previewLength = 200
)

// Retriever returns the chunks most similar to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Config controls retrieval depth and prompt size.
type Config struct {
	TopK            int
	MaxContextChars int
	// Preamble overrides the default instructions.
	Preamble string
}

// Pipeline answers questions by retrieving context and handing it to a generator.
type Pipeline struct {
	retriever Retriever
	generator domain.Generator
	cfg       Config
	logger    *log.Logger
}

func New(retriever Retriever, generator domain.Generator, cfg Config, logger *log.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Preamble == "" {
		cfg.Preamble = Preamble
	}
	return &Pipeline{retriever: retriever, generator: generator, cfg: cfg, logger: logging.OrDiscard(logger)}
}

// Answer retrieves up to k chunks (the configured TopK when k <= 0), builds a
// bounded prompt and generates an answer. Confidence is the mean similarity of
// the chunks placed in the prompt.
func (p *Pipeline) Answer(ctx context.Context, question string, k int) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if k <= 0 {
		k = p.cfg.TopK
	}
	ans := &domain.Answer{ID: uuid.NewString(), Question: question, Sources: []domain.Source{}}
	start := time.Now()

	results, err := p.retriever.Search(ctx, question, k)
	if err != nil {
		return nil, err
	}
	prompt, used := buildPrompt(p.cfg.Preamble, question, results, p.cfg.MaxContextChars)
	if len(used) == 0 {
		ans.Answer = NoInformationAnswer
		p.logger.Info().Str("id", ans.ID).Int("retrieved", len(results)).Msg("no usable context")
		return ans, nil
	}

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Error().Err(err).Str("id", ans.ID).Str("generator", p.generator.Name()).Msg("generation failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	ans.Answer = text
	ans.Confidence = confidence(used)
	ans.ContextUsed = len(used)
	for _, r := range used {
		ans.Sources = append(ans.Sources, domain.Source{
			Chunk:   r.Chunk,
			Score:   r.Score,
			Preview: domain.Preview(r.Chunk.Text, previewLength),
		})
	}
	p.logger.Info().
		Str("id", ans.ID).
		Int("retrieved", len(results)).
		Int("context_used", ans.ContextUsed).
		Float64("confidence", ans.Confidence).
		Dur("elapsed", time.Since(start)).
		Msg("question answered")
	return ans, nil
}

// confidence is the mean similarity clamped to [0, 1].
func confidence(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Score
	}
	return max(0, min(sum/float64(len(results)), 1))
}
