package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultSentences is used when Summarize is asked for zero sentences.
const DefaultSentences = 3

var (
	sentencePattern = regexp.MustCompile(`(?s)\S.*?(?:[.!?](?:\s|$)|$)`)
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
)

// Frequency ranks sentences by the normalised frequency of their non-stopword
// tokens and keeps the best ones in document order.
type Frequency struct {
	stopwords map[string]struct{}
}

func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// Summarize returns at most maxSentences sentences of text.
// Text without sentence punctuation is returned trimmed.
func (s *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	freq := map[string]float64{}
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = s.Keywords(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok] / maxF
		}
		// Long sentences would otherwise always win.
		if n := len(tokens[i]); n > 0 {
			score /= math.Sqrt(float64(n))
		}
		scores[i] = ranked{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// Sentences returns the whitespace-normalised sentences of text in order.
func Sentences(text string) []string {
	var out []string
	for _, m := range sentencePattern.FindAllString(text, -1) {
		if m = strings.Join(strings.Fields(m), " "); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// splitSentences is Sentences with repeats, as produced by overlapping
// chunks, kept once.
func splitSentences(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range Sentences(text) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Keywords returns the lower-cased non-stopword tokens of text.
func (s *Frequency) Keywords(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := s.stopwords[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"we", "our", "us", "its", "has", "have", "had", "which",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
