package whatsapp

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleGateway prints outbound messages instead of sending them. It backs
// the local chat command and serve mode without Twilio credentials.
type ConsoleGateway struct {
	w  io.Writer
	mu sync.Mutex
}

// NewConsoleGateway writes messages to w.
func NewConsoleGateway(w io.Writer) *ConsoleGateway {
	return &ConsoleGateway{w: w}
}

// Send writes one message block.
func (g *ConsoleGateway) Send(_ context.Context, to, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := fmt.Fprintf(g.w, "→ %s\n%s\n\n", to, body)
	return err
}

// Outbox collects outbound messages in memory.
type Outbox struct {
	sent []Message
	mu   sync.Mutex
}

// Message is one delivered message.
type Message struct {
	To   string
	Body string
}

// Send records the message.
func (o *Outbox) Send(_ context.Context, to, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, Message{To: to, Body: body})
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.sent))
	copy(out, o.sent)
	return out
}

// Drain returns and clears the collected messages.
func (o *Outbox) Drain() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.sent
	o.sent = nil
	return out
}
