package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finqa/internal/domain"
	"finqa/internal/service"
	"finqa/internal/summarizer"
)

// QAPort is the TUI-facing subset of the QA bot.
type QAPort interface {
	AskQuestion(ctx context.Context, question string) (*domain.Answer, error)
	Stats() service.Stats
}

type answerMsg struct {
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the interactive question loop.
type Model struct {
	bot      QAPort
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	answer   *domain.Answer
	summary  string
	status   string
	cursor   int
	busy     bool
	ready    bool
}

// New creates the model. timeout bounds each question; zero means no limit.
func New(bot QAPort, summary string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the filing, or type stats / quit"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		bot:      bot,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Ask a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.answer = msg.answer
			m.cursor = 0
			m.status = fmt.Sprintf("Confidence %.2f, %d sources used", msg.answer.Confidence, len(msg.answer.Sources))
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			switch strings.ToLower(q) {
			case "":
				return m, nil
			case "quit", "exit", "q":
				return m, tea.Quit
			case "stats":
				m.input.SetValue("")
				m.status = formatStats(m.bot.Stats())
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = fmt.Sprintf("Thinking about %q", q)
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "down":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Sources)) % len(m.answer.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	bot, timeout := m.bot, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		ans, err := bot.AskQuestion(ctx, question)
		return answerMsg{answer: ans, err: err}
	}
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Financial Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(labelStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(m.answer.Answer)
	b.WriteString(fmt.Sprintf("\n\nConfidence: %.2f", m.answer.Confidence))
	if len(m.answer.Sources) == 0 {
		return b.String()
	}
	src := m.answer.Sources[m.cursor]
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("Source %d/%d", m.cursor+1, len(m.answer.Sources))))
	b.WriteString(fmt.Sprintf("  %s, %s  score=%.3f\n", filepath.Base(src.Chunk.Source), src.Chunk.Location(), src.Score))
	b.WriteString(highlightBestSentence(src.Preview, m.answer.Question))
	return b.String()
}

func formatStats(st service.Stats) string {
	return fmt.Sprintf("%d chunks, dim %d, %s, %s, state %s",
		st.TotalChunks, st.Dimension, st.EmbeddingModel, st.IndexType, st.State)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle     = lipgloss.NewStyle().Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	keywords       = summarizer.NewFrequency().Keywords
)

// highlightBestSentence marks the sentence sharing the most keywords with the query.
func highlightBestSentence(text, query string) string {
	wanted := map[string]bool{}
	for _, k := range keywords(query) {
		wanted[k] = true
	}
	sentences := summarizer.Sentences(text)
	if len(wanted) == 0 || len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	best, bestHits := -1, 0
	for i, sent := range sentences {
		words := keywords(sent)
		slices.Sort(words)
		hits := 0
		for _, w := range slices.Compact(words) {
			if wanted[w] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}
