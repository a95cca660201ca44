package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/whatsapp"
)

// echoHandler replies through the outbox like the conversation service.
type echoHandler struct {
	outbox *whatsapp.Outbox
	err    error
	got    []string
}

func (h *echoHandler) HandleInbound(ctx context.Context, phone, text string) error {
	h.got = append(h.got, text)
	if h.err != nil {
		return h.err
	}
	return h.outbox.Send(ctx, phone, "קיבלתי: "+text)
}

func newTestModel(h *echoHandler) Model {
	return NewModel(context.Background(), Config{
		Handler: h,
		Outbox:  h.outbox,
		Phone:   "972501234567",
		Width:   60,
		Height:  20,
	})
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

// press sends enter and runs the batched delivery command to completion.
func press(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		return m
	}
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if reply, ok := c().(replyMsg); ok {
			next, _ = m.Update(reply)
			m = next.(Model)
		}
	}
	return m
}

func TestSendAndReply(t *testing.T) {
	h := &echoHandler{outbox: &whatsapp.Outbox{}}
	m := typeText(newTestModel(h), "שלום")
	m = press(t, m)

	assert.Equal(t, []string{"שלום"}, h.got)
	lines := m.Transcript()
	require.Len(t, lines, 2)
	assert.Equal(t, SpeakerUser, lines[0].Speaker)
	assert.Equal(t, Line{Speaker: SpeakerBot, Text: "קיבלתי: שלום"}, lines[1])
	assert.False(t, m.waiting)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "קיבלתי: שלום")
}

func TestBlankInputIsIgnored(t *testing.T) {
	h := &echoHandler{outbox: &whatsapp.Outbox{}}
	m := typeText(newTestModel(h), "   ")
	m = press(t, m)
	assert.Empty(t, h.got)
	assert.Empty(t, m.Transcript())
}

func TestHandlerErrorIsShown(t *testing.T) {
	h := &echoHandler{outbox: &whatsapp.Outbox{}, err: errors.New("user not found")}
	m := press(t, typeText(newTestModel(h), "היי"))

	lines := m.Transcript()
	require.Len(t, lines, 2)
	assert.Equal(t, SpeakerSystem, lines[1].Speaker)
	assert.Contains(t, lines[1].Text, "user not found")
}

func TestWaitingBlocksSecondSend(t *testing.T) {
	h := &echoHandler{outbox: &whatsapp.Outbox{}}
	m := typeText(newTestModel(h), "א")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.waiting)

	m = typeText(m, "ב")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Len(t, m.Transcript(), 1)
}

func TestQuitAndResize(t *testing.T) {
	h := &echoHandler{outbox: &whatsapp.Outbox{}}
	m := newTestModel(h)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	assert.Equal(t, 100, m.viewport.Width)
	assert.Greater(t, m.viewport.Height, 20)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, strings.TrimSpace(m.View()))
}

func TestRunValidatesConfig(t *testing.T) {
	assert.Error(t, Run(context.Background(), Config{}))
	h := &echoHandler{outbox: &whatsapp.Outbox{}}
	assert.Error(t, Run(context.Background(), Config{Handler: h, Outbox: h.outbox}))
}
