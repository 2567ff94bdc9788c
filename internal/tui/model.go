// Package tui is the terminal front end: a question box, an answer
// viewport and a sources footer. It is a thin consumer of the assistant
// core and holds no retrieval logic of its own.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// AskPort is the TUI-facing subset of the assistant.
type AskPort interface {
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
}

// askTimeout bounds one question round trip, including the model call.
const askTimeout = 2 * time.Minute

type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// Model is the Bubble Tea model for the assistant UI.
type Model struct {
	assistant AskPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	summary   string
	status    string
	waiting   bool
	ready     bool
}

// New creates the TUI model. The summary line describes the ingested corpus.
func New(assistant AskPort, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask about the documentation and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		assistant: assistant,
		topK:      topK,
		input:     ti,
		viewport:  vp,
		summary:   summary,
		status:    "Corpus loaded. Ask away.",
	}
}

// Init starts the text input cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, question box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-ah)
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Answered %q using %d passages", msg.question, msg.answer.ChunksUsed)
		m.viewport.SetContent(renderAnswer(msg.answer))
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the full layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Documentation Assistant")
	summary := summaryStyle.Render(m.summary)
	answer := answerBoxStyle.Render(m.viewport.View())
	question := questionBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + answer + "\n" + question + "\n" + status
}

func (m Model) ask(question string) tea.Cmd {
	assistant, topK := m.assistant, m.topK
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		answer, err := assistant.Ask(ctx, question, topK)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func renderAnswer(a domain.Answer) string {
	var b strings.Builder
	b.WriteString(a.Text)
	if len(a.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourceHeadStyle.Render("Sources"))
		for i, src := range a.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(&b, "\n  %d. %s", i+1, title)
			if src.URL != "" && src.URL != title {
				fmt.Fprintf(&b, " (%s)", src.URL)
			}
		}
	}
	return b.String()
}

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	summaryStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sourceHeadStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
