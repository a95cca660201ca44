// Package tui is a terminal chat that stands in for WhatsApp. Messages typed
// here go through the same conversation service the webhook uses.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Idosegev23/finhealer/internal/tui/themes"
	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

// Handler processes one inbound message. Replies go to the gateway.
type Handler interface {
	HandleInbound(ctx context.Context, phone, text string) error
}

// Drainer hands back the replies sent since the last call.
type Drainer interface {
	Drain() []whatsapp.Message
}

// Config configures the chat.
type Config struct {
	Handler Handler
	Outbox  Drainer
	Theme   themes.Theme
	Phone   string
	Name    string
	Width   int
	Height  int
}

// chrome is the number of rows taken by everything but the transcript.
const chrome = 7

// Model holds the chat state.
type Model struct {
	ctx      context.Context
	handler  Handler
	outbox   Drainer
	keymap   KeyMap
	theme    themes.Theme
	phone    string
	name     string
	lines    []Line
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	width    int
	height   int
	waiting  bool
	quitting bool
}

// NewModel creates a chat model.
func NewModel(ctx context.Context, cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "כתבו הודעה..."
	input.Prompt = "› "
	input.CharLimit = 1600
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	theme := cfg.Theme
	if theme.Primary == "" {
		theme = themes.Default
	}
	name := cfg.Name
	if name == "" {
		name = "את/ה"
	}

	m := Model{
		ctx:      ctx,
		handler:  cfg.Handler,
		outbox:   cfg.Outbox,
		keymap:   DefaultKeyMap(),
		theme:    theme,
		phone:    cfg.Phone,
		name:     name,
		input:    input,
		viewport: viewport.New(width, max(height-chrome, 3)),
		spinner:  sp,
		help:     help.New(),
	}
	m.resize(width, height)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize(m.width, m.height)
			return m, nil
		case key.Matches(msg, m.keymap.ScrollUp), key.Matches(msg, m.keymap.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case key.Matches(msg, m.keymap.Send):
			return m.send()
		}

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.append(Line{Speaker: SpeakerSystem, Text: msg.err.Error()})
		}
		for _, r := range msg.replies {
			m.append(Line{Speaker: SpeakerBot, Text: r.Body})
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	m.append(Line{Speaker: SpeakerUser, Text: text})
	m.waiting = true
	return m, tea.Batch(m.deliver(text), m.spinner.Tick)
}

// deliver runs the conversation off the UI loop.
func (m Model) deliver(text string) tea.Cmd {
	ctx, handler, outbox, phone := m.ctx, m.handler, m.outbox, m.phone
	return func() tea.Msg {
		err := handler.HandleInbound(ctx, phone, text)
		return replyMsg{err: err, replies: outbox.Drain()}
	}
}

func (m *Model) append(l Line) {
	m.lines = append(m.lines, l)
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	helpRows := 1
	if m.help.ShowAll {
		helpRows = 3
	}
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome-helpRows+1, 3)
	m.input.Width = max(width-8, 10)
	m.help.Width = width
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.lines) == 0 {
		return m.theme.Subtitle.Render("שלחו הודעה כדי להתחיל. למשל: שלום")
	}
	wrap := lipgloss.NewStyle().Width(max(m.width-4, 10))
	blocks := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		var head, body string
		switch l.Speaker {
		case SpeakerUser:
			head = m.theme.UserName.Render(m.name)
			body = m.theme.UserText.Render(wrap.Render(l.Text))
		case SpeakerBot:
			head = m.theme.BotName.Render("φ Phi")
			body = m.theme.BotText.Render(wrap.Render(l.Text))
		default:
			head = m.theme.Error.Render("שגיאה")
			body = m.theme.Error.Render(wrap.Render(l.Text))
		}
		blocks = append(blocks, head+"\n"+body)
	}
	return strings.Join(blocks, "\n\n")
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	header := m.theme.Title.Render("φ Phi") + "  " + m.theme.Subtitle.Render(m.phone)

	status := " "
	if m.waiting {
		status = m.spinner.View() + m.theme.Status.Render(" Phi מקליד...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.theme.Input.Width(max(m.width-4, 10)).Render(m.input.View()),
		m.help.View(m.keymap),
	)
}

// Transcript returns the conversation so far.
func (m Model) Transcript() []Line {
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}
