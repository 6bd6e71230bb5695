package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/domain"
	"finqa/internal/service"
	"finqa/internal/vectorstore"
)

type stubBot struct {
	answer  *domain.Answer
	err     error
	asked   []string
	hasDead bool
}

func (s *stubBot) AskQuestion(ctx context.Context, q string) (*domain.Answer, error) {
	s.asked = append(s.asked, q)
	_, s.hasDead = ctx.Deadline()
	return s.answer, s.err
}

func (s *stubBot) Stats() service.Stats {
	return service.Stats{
		Stats: vectorstore.Stats{TotalChunks: 12, Dimension: 384, EmbeddingModel: "hashing", IndexType: vectorstore.IndexType},
		State: "indexed",
	}
}

func typeAndEnter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func TestModel_QuitCommands(t *testing.T) {
	for _, word := range []string{"quit", "exit", "q", "QUIT"} {
		m := sized(New(&stubBot{}, "", 0))
		_, cmd := typeAndEnter(t, m, word)
		require.NotNil(t, cmd, word)
		assert.IsType(t, tea.QuitMsg{}, cmd(), word)
	}
}

func TestModel_Stats(t *testing.T) {
	m := sized(New(&stubBot{}, "", 0))
	m, cmd := typeAndEnter(t, m, "stats")
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "12 chunks")
	assert.Contains(t, m.status, "hashing")
	assert.Empty(t, m.input.Value())
}

func TestModel_AskAndCycleSources(t *testing.T) {
	bot := &stubBot{answer: &domain.Answer{
		Question:   "What were net sales?",
		Answer:     "Net sales were $391.0 billion.",
		Confidence: 0.42,
		Sources: []domain.Source{
			{Chunk: domain.Chunk{Source: "/tmp/10k.pdf", Pages: []int{3}}, Score: 0.5, Preview: "Net sales grew. Weather was fine."},
			{Chunk: domain.Chunk{Source: "aapl.xml", Category: "us-gaap"}, Score: 0.34, Preview: "Revenues: 391035000000"},
		},
	}}
	m := sized(New(bot, "summary", time.Minute))

	m, cmd := typeAndEnter(t, m, "What were net sales?")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "Thinking")

	msg := m.ask("What were net sales?")()
	require.IsType(t, answerMsg{}, msg)
	assert.True(t, bot.hasDead)

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Contains(t, m.status, "Confidence 0.42")
	view := m.renderAnswer()
	assert.Contains(t, view, "Net sales were $391.0 billion.")
	assert.Contains(t, view, "Source 1/2")
	assert.Contains(t, view, "10k.pdf, page 3")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderAnswer(), "aapl.xml, us-gaap")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderAnswer(), "Source 1/2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Contains(t, m.renderAnswer(), "Source 2/2")
}

func TestModel_AskError(t *testing.T) {
	m := sized(New(&stubBot{err: errors.New("no documents indexed")}, "", 0))
	m, _ = typeAndEnter(t, m, "revenue?")
	next, _ := m.Update(m.ask("revenue?")())
	m = next.(Model)
	assert.True(t, strings.HasPrefix(m.status, "Error: no documents indexed"))
	assert.Equal(t, "No answer yet.", m.renderAnswer())
}

func TestHighlightBestSentence(t *testing.T) {
	text := "The weather was fine. Net sales grew strongly."
	got := highlightBestSentence(text, "net sales")
	assert.Contains(t, got, "The weather was fine.")
	assert.Contains(t, got, "Net sales grew strongly.")
	assert.Equal(t, "plain text", highlightBestSentence("plain text", ""))
}

func TestHighlightBestSentence_IgnoresStopwords(t *testing.T) {
	text := "The company and the board met in the spring.   Revenue for the year rose."
	got := highlightBestSentence(text, "what was the revenue for the year")
	assert.Contains(t, got, "The company and the board met in the spring. ")
	assert.Contains(t, got, highlightStyle.Render("Revenue for the year rose."))
	assert.Equal(t, "The weather was fine.", highlightBestSentence("The weather was fine.", "the and of"))
}
