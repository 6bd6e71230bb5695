package rag

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"finqa/internal/domain"
)

// Preamble instructs the model to answer from the supplied context only.
const Preamble = `You are a financial analyst assistant. Your job is to answer questions about financial documents (10-K reports, XBRL filings) based only on the provided context.

Guidelines:
1. Answer based ONLY on the information provided in the context
2. If the context doesn't contain enough information to answer the question, say so
3. Be precise and cite specific numbers, dates, or facts when available
4. For financial questions, include relevant metrics and context
5. If you're unsure about something, express that uncertainty
6. Keep answers concise but comprehensive`

func render(preamble, question string, results []domain.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Context %d] %s\n%s\n", i+1, citation(r.Chunk), r.Chunk.Text)
	}
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(blocks, "\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// citation renders the header line of a context block, e.g.
// "Source: 10k.pdf | Page: 3 | Type: PDF".
func citation(c domain.Chunk) string {
	var parts []string
	if c.Source != "" {
		parts = append(parts, "Source: "+filepath.Base(c.Source))
	}
	switch len(c.Pages) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("Page: %d", c.Pages[0]))
	default:
		parts = append(parts, fmt.Sprintf("Page: %d-%d", c.Pages[0], c.Pages[len(c.Pages)-1]))
	}
	if c.Category != "" {
		parts = append(parts, "Category: "+c.Category)
	}
	if c.DocumentType != "" {
		parts = append(parts, "Type: "+strings.ToUpper(c.DocumentType))
	}
	return strings.Join(parts, " | ")
}

// buildPrompt renders the prompt within maxChars runes. Results must be sorted
// by descending similarity; the weakest are dropped first and, when only the
// best one is left, its text is cut to fit. It returns the results that made it
// into the prompt, or none when even an empty context block is too long.
// A maxChars <= 0 disables the limit.
func buildPrompt(preamble, question string, results []domain.SearchResult, maxChars int) (string, []domain.SearchResult) {
	if len(results) == 0 {
		return "", nil
	}
	if maxChars <= 0 {
		return render(preamble, question, results), results
	}
	for n := len(results); n > 0; n-- {
		prompt := render(preamble, question, results[:n])
		if utf8.RuneCountInString(prompt) <= maxChars {
			return prompt, results[:n]
		}
	}

	best := results[0]
	best.Chunk.Text = ""
	room := maxChars - utf8.RuneCountInString(render(preamble, question, []domain.SearchResult{best}))
	if room <= 0 {
		return "", nil
	}
	best.Chunk.Text = string([]rune(results[0].Chunk.Text)[:room])
	return render(preamble, question, []domain.SearchResult{best}), results[:1]
}
