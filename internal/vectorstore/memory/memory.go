package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"finqa/internal/domain"
)

// DefaultTopK is used when a search asks for k <= 0.
const DefaultTopK = 5

// Index is an append-only in-memory vector index using brute-force cosine similarity.
// Vector i always belongs to chunk i.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	norms     []float64
	chunks    []domain.Chunk
}

func NewIndex(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{dimension: dimension}, nil
}

func (s *Index) Dimension() int { return s.dimension }

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Append adds the chunks and their vectors in one step. Nothing is added on error.
func (s *Index) Append(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), s.dimension)
		}
		norms[i] = norm(v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	s.norms = append(s.norms, norms...)
	return nil
}

// Search returns the topK chunks by descending cosine similarity. Equal scores
// keep insertion order.
func (s *Index) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	qn := norm(vector)
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = cosine(s.vectors[i], s.norms[i], vector, qn)
	}
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// Snapshot returns copies of the chunk and vector slices in index order.
func (s *Index) Snapshot() ([]domain.Chunk, [][]float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]domain.Chunk, len(s.chunks))
	copy(chunks, s.chunks)
	vectors := make([][]float64, len(s.vectors))
	copy(vectors, s.vectors)
	return chunks, vectors
}

func (s *Index) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a []float64, an float64, b []float64, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum / (an * bn)
}
