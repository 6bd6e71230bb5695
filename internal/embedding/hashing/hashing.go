package hashing

import (
	"context"
	"regexp"
	"strings"

	"github.com/minio/highwayhash"

	"finqa/internal/embedding"
)

// DefaultDimension matches the width of the small sentence-transformer models
// the store is usually paired with.
const DefaultDimension = 384

var key = []byte("finqa-hashing-embedder-key-00000")

// Embedder is an offline term-frequency embedder. Tokens are assigned to
// buckets with HighwayHash, so no corpus preparation is needed and vectors
// from separate ingestions share one space.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the signed, L2-normalised bucket counts of the text's tokens.
// Text without tokens yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dimension)
	for _, tok := range e.tokenize(text) {
		h := highwayhash.Sum64([]byte(tok), key)
		idx := h % uint64(e.dimension)
		if h>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	embedding.Normalize(vec)
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "does", "did", "do", "its", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
