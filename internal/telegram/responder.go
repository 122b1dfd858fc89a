// Package telegram connects the conversation engine to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autopodbor/intake-bot/internal/conversation"
)

// Bot is the subset of *tgbotapi.BotAPI used for outgoing calls.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ Bot = (*tgbotapi.BotAPI)(nil)

// ChatResponder sends prompts to a single chat.
type ChatResponder struct {
	bot    Bot
	chatID int64
}

var _ conversation.Responder = (*ChatResponder)(nil)

// NewChatResponder creates a responder bound to chatID.
func NewChatResponder(bot Bot, chatID int64) *ChatResponder {
	return &ChatResponder{bot: bot, chatID: chatID}
}

// Send delivers p and returns a reference to the sent message.
func (r *ChatResponder) Send(ctx context.Context, p conversation.Prompt) (conversation.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return conversation.MessageRef{}, err
	}

	msg := tgbotapi.NewMessage(r.chatID, p.Text)
	if p.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if markup := renderKeyboard(p.Keyboard); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := r.bot.Send(msg)
	if err != nil {
		return conversation.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return conversation.MessageRef{ChatID: r.chatID, MessageID: sent.MessageID}, nil
}

// Edit replaces the text of a previously sent message.
func (r *ChatResponder) Edit(ctx context.Context, ref conversation.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.bot.Request(tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func renderKeyboard(kb *conversation.Keyboard) any {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return tgbotapi.NewRemoveKeyboard(false)
	case kb.Inline:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	default:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, b := range row {
				if b.RequestContact {
					buttons = append(buttons, tgbotapi.NewKeyboardButtonContact(b.Text))
				} else {
					buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Text))
				}
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		markup.OneTimeKeyboard = true
		return markup
	}
}
