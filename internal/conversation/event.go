// Package conversation drives the intake questionnaire: it routes inbound chat
// events to the handler for the current state, records answers and renders
// the next prompt.
package conversation

import (
	"context"

	"github.com/autopodbor/intake-bot/internal/domain"
)

// Kind classifies an inbound chat event.
type Kind int

const (
	KindText Kind = iota + 1
	KindStart
	KindCancel
	KindContact
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStart:
		return "start"
	case KindCancel:
		return "cancel"
	case KindContact:
		return "contact"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is a transport-neutral inbound chat event.
type Event struct {
	Kind     Kind
	Identity string
	// Text is the message text, the command arguments for KindStart or the
	// callback data for KindCallback.
	Text    string
	Contact *domain.Contact
	Profile domain.Profile
}

// Button is a keyboard button. Data makes it an inline callback button.
type Button struct {
	Text           string
	Data           string
	RequestContact bool
}

// Keyboard is attached to an outgoing prompt. Remove hides a previously shown
// reply keyboard.
type Keyboard struct {
	Rows   [][]Button
	Inline bool
	Remove bool
}

// Prompt is an outgoing message.
type Prompt struct {
	Text     string
	HTML     bool
	Keyboard *Keyboard
}

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Responder delivers prompts to the chat the event came from.
type Responder interface {
	Send(ctx context.Context, p Prompt) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
}

// Transition describes an accepted state change.
type Transition struct {
	IdentityKey string
	Event       string
	From        domain.State
	To          domain.State
}
