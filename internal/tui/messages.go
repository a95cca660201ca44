package tui

import "github.com/Idosegev23/finhealer/internal/whatsapp"

// Speaker identifies who wrote a transcript line.
type Speaker int

// Speakers.
const (
	SpeakerUser Speaker = iota
	SpeakerBot
	SpeakerSystem
)

// Line is one entry of the transcript.
type Line struct {
	Text    string
	Speaker Speaker
}

// replyMsg carries the bot's messages after one inbound message was handled.
type replyMsg struct {
	err     error
	replies []whatsapp.Message
}
