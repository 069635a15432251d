// Package tui is the terminal chat window: a compose line, a live
// suggestion from the engine and a scrolling chat log.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/woxQAQ/hanzi-ime/internal/chat"
	"github.com/woxQAQ/hanzi-ime/internal/ipc"
	"go.uber.org/zap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	suggestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	cmdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chrome is the number of lines around the chat log.
const chrome = 6

// Opener loads the engine; onReady runs once it can exchange messages.
type Opener func(ctx context.Context, onReady func()) (*ipc.Handle, error)

// Model is the bubbletea model of the chat window.
type Model struct {
	ctx       context.Context
	open      Opener
	messenger *ipc.Messenger
	logger    *zap.Logger

	handle  *ipc.Handle
	session *chat.Session

	source  string
	input   textinput.Model
	log     viewport.Model
	suggest string
	err     error
	width   int
}

type loadedMsg struct {
	handle *ipc.Handle
	err    error
}

// New creates the chat model. source is only displayed.
func New(ctx context.Context, source string, open Opener, messenger *ipc.Messenger, logger *zap.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "type pinyin, text or /help"
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	return &Model{
		ctx:       ctx,
		open:      open,
		messenger: messenger,
		logger:    logger.With(zap.String("component", "tui")),
		source:    source,
		input:     ti,
		log:       viewport.New(80, 12),
		width:     80,
	}
}

// Init starts loading the engine.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load, textinput.Blink)
}

func (m *Model) load() tea.Msg {
	h, err := m.open(m.ctx, func() {
		m.logger.Debug("Engine ready for chat")
	})
	return loadedMsg{handle: h, err: err}
}

// Update handles key presses, resizes and the engine load result.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !msg.Alt {
				m.send()
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		m.log.Width = msg.Width
		m.log.Height = max(msg.Height-chrome, 3)
		m.refreshLog()
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.handle = msg.handle
		m.session = chat.NewSession(chat.EngineTranslator(m.messenger, msg.handle), m.logger)
		m.session.Welcome()
		m.refreshLog()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.updateSuggestion()
	}

	var logCmd tea.Cmd
	m.log, logCmd = m.log.Update(msg)
	return m, tea.Batch(cmd, logCmd)
}

func (m *Model) updateSuggestion() {
	if m.session == nil {
		return
	}
	s, err := m.session.Suggest(m.ctx, m.input.Value())
	if err != nil {
		m.logger.Warn("Suggestion failed", zap.Error(err))
		m.suggest = ""
		return
	}
	m.suggest = s
}

func (m *Model) send() {
	if m.session == nil {
		return
	}
	value := m.input.Value()
	if strings.TrimSpace(value) == "" {
		return
	}

	// A failed send keeps the compose line so the text is not lost.
	if _, err := m.session.Submit(m.ctx, value); err != nil {
		m.logger.Warn("Send failed", zap.Error(err))
		m.err = err
		return
	}

	m.err = nil
	m.suggest = ""
	m.input.Reset()
	m.refreshLog()
}

func (m *Model) refreshLog() {
	if m.session == nil {
		return
	}
	var b strings.Builder
	for i, e := range m.session.Entries() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderEntry(e, m.width))
	}
	m.log.SetContent(b.String())
	m.log.GotoBottom()
}

func renderEntry(e chat.Entry, width int) string {
	if e.Kind == chat.KindMessage {
		return lipgloss.NewStyle().Width(max(width, 10)).Render(e.Text)
	}
	return cmdStyle.Width(max(width-2, 10)).Render(e.Text)
}

// View renders the window.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("hanzi-ime"))
	b.WriteString(" ")
	b.WriteString(m.source)
	b.WriteString("\n\n")

	switch {
	case m.session == nil && m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("esc quit"))
		return b.String()
	case m.session == nil:
		b.WriteString("Loading engine...")
		return b.String()
	}

	b.WriteString(m.log.View())
	b.WriteString("\n")
	b.WriteString(suggestStyle.Render(m.suggest))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		b.WriteString(helpStyle.Render("enter send • esc quit"))
	}

	return b.String()
}

// Session returns the chat session, nil until the engine is loaded.
func (m *Model) Session() *chat.Session {
	return m.session
}

// Suggestion returns the current suggestion line.
func (m *Model) Suggestion() string {
	return m.suggest
}

// Handle returns the loaded engine handle, if any.
func (m *Model) Handle() *ipc.Handle {
	return m.handle
}

// Run opens the chat window on the terminal until the user quits.
func Run(m *Model, opts ...tea.ProgramOption) error {
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
