package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"

	"finqa/internal/domain"
	"finqa/internal/logging"
	"finqa/internal/vectorstore/memory"
)

// IndexType describes the similarity index reported in Stats.
const IndexType = "flat cosine (in-memory)"

// Stats summarises the store contents.
type Stats struct {
	TotalChunks    int    `json:"total_chunks"`
	Dimension      int    `json:"embedding_dimension"`
	EmbeddingModel string `json:"embedding_model"`
	IndexType      string `json:"index_type"`
}

// Store embeds chunks and answers nearest-neighbour queries over them.
// It owns its index exclusively; Load swaps the index wholesale.
type Store struct {
	mu       sync.RWMutex
	embedder domain.Embedder
	index    *memory.Index
	logger   *log.Logger
}

func New(embedder domain.Embedder, logger *log.Logger) (*Store, error) {
	index, err := memory.NewIndex(embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("embedder %s: %w", embedder.Name(), err)
	}
	return &Store{embedder: embedder, index: index, logger: logging.OrDiscard(logger)}, nil
}

func (s *Store) current() *memory.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int { return s.current().Len() }

// AddChunks embeds and indexes the chunks, returning how many were added.
// Chunks that fail to embed are logged and skipped. The surviving chunks are
// appended together, so a cancelled batch leaves the index untouched.
func (s *Store) AddChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	dim := s.embedder.Dimension()
	kept := make([]domain.Chunk, 0, len(chunks))
	vectors := make([][]float64, 0, len(chunks))
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		vec, err := s.embedder.Embed(ctx, ch.Text)
		if err == nil && len(vec) != dim {
			err = fmt.Errorf("got dimension %d, want %d", len(vec), dim)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			s.logger.Warn().
				Err(err).
				Str("source", ch.Source).
				Int("chunk", ch.Index).
				Msg("skipping chunk that failed to embed")
			continue
		}
		kept = append(kept, ch)
		vectors = append(vectors, vec)
	}
	if err := s.current().Append(kept, vectors); err != nil {
		return 0, err
	}
	s.logger.Info().
		Int("added", len(kept)).
		Int("skipped", len(chunks)-len(kept)).
		Int("total", s.Len()).
		Msg("chunks indexed")
	return len(kept), nil
}

// Search embeds the query and returns at most k chunks by descending cosine similarity.
func (s *Store) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	index := s.current()
	if index.Len() == 0 {
		return nil, domain.ErrEmptyIndex
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	results, err := index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	s.logger.Debug().Str("query", query).Int("k", k).Int("results", len(results)).Msg("search")
	return results, nil
}

// Stats reports the store size and embedder.
func (s *Store) Stats() Stats {
	return Stats{
		TotalChunks:    s.Len(),
		Dimension:      s.embedder.Dimension(),
		EmbeddingModel: s.embedder.Name(),
		IndexType:      IndexType,
	}
}

// Clear drops every indexed chunk.
func (s *Store) Clear() {
	s.current().Clear()
	s.logger.Info().Msg("vector store cleared")
}
