// Package tui implements the interactive chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/engine"
)

// Asker is the TUI-facing subset of the engine.
type Asker interface {
	Ask(ctx context.Context, sessionID, query string) (*engine.Answer, error)
}

// exchange is one rendered question/answer pair.
type exchange struct {
	question string
	answer   *engine.Answer
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	eng       Asker
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	history   []exchange
	status    string
	ready     bool
}

// New creates a new chat model bound to one session.
func New(eng Asker, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		eng:       eng,
		sessionID: sessionID,
		input:     ti,
		viewport:  vp,
		status:    "Session " + sessionID,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + input box + spacer
		vh := msg.Height - reserved - ch
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderHistory())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ans, err := m.eng.Ask(context.Background(), m.sessionID, q)
				if err != nil {
					m.status = "Error: " + err.Error()
				} else {
					m.history = append(m.history, exchange{question: q, answer: ans})
					m.status = fmt.Sprintf("Intent: %s  Confidence: %.2f", ans.Intent, ans.Confidence)
					m.input.SetValue("")
				}
				m.viewport.SetContent(m.renderHistory())
				m.viewport.GotoBottom()
				return m, nil
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

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docchat")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "Ask something about your documents."
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + ex.question))
		b.WriteString("\n")
		b.WriteString(ex.answer.Text)
		if len(ex.answer.Sources) > 0 {
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render("Sources: " + strings.Join(ex.answer.Sources, ", ")))
		}
	}
	return b.String()
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
