package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autopodbor/intake-bot/internal/conversation"
	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/identity"
)

// Inbound is a converted update along with the Telegram-specific bits the
// engine does not see.
type Inbound struct {
	Event  conversation.Event
	ChatID int64
	// CallbackID and MessageID are set for button presses.
	CallbackID string
	MessageID  int
}

// Convert maps an update to a conversation event. Updates the bot does not
// handle, such as photos or channel posts, report false.
func Convert(u tgbotapi.Update) (Inbound, bool) {
	switch {
	case u.CallbackQuery != nil:
		return convertCallback(u.CallbackQuery)
	case u.Message != nil:
		return convertMessage(u.Message)
	default:
		return Inbound{}, false
	}
}

func convertMessage(m *tgbotapi.Message) (Inbound, bool) {
	if m.Chat == nil {
		return Inbound{}, false
	}
	in := Inbound{ChatID: m.Chat.ID, MessageID: m.MessageID}
	in.Event.Identity, in.Event.Profile = sender(m.From, m.Chat.ID)

	switch {
	case m.Contact != nil:
		in.Event.Kind = conversation.KindContact
		in.Event.Contact = &domain.Contact{
			PhoneNumber: m.Contact.PhoneNumber,
			FirstName:   m.Contact.FirstName,
			LastName:    m.Contact.LastName,
		}
	case m.IsCommand():
		switch strings.ToLower(m.Command()) {
		case "start":
			in.Event.Kind = conversation.KindStart
			in.Event.Text = m.CommandArguments()
		case "cancel":
			in.Event.Kind = conversation.KindCancel
		default:
			// Other commands are never answers.
			return Inbound{}, false
		}
	case m.Text != "":
		in.Event.Kind = conversation.KindText
		in.Event.Text = m.Text
	default:
		return Inbound{}, false
	}
	return in, true
}

func convertCallback(q *tgbotapi.CallbackQuery) (Inbound, bool) {
	if q.Message == nil || q.Message.Chat == nil {
		return Inbound{}, false
	}
	in := Inbound{
		ChatID:     q.Message.Chat.ID,
		CallbackID: q.ID,
		MessageID:  q.Message.MessageID,
	}
	in.Event.Kind = conversation.KindCallback
	in.Event.Text = q.Data
	in.Event.Identity, in.Event.Profile = sender(q.From, q.Message.Chat.ID)
	return in, true
}

// sender derives the identity key from the user, falling back to the chat
// for anonymous senders.
func sender(u *tgbotapi.User, chatID int64) (string, domain.Profile) {
	if u == nil {
		return identity.FromUserID(chatID), domain.Profile{}
	}
	return identity.FromUserID(u.ID), domain.Profile{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}
