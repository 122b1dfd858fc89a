package telegram

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/autopodbor/intake-bot/internal/conversation"
	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/identity"
)

// Handler runs one conversation step.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event, r conversation.Responder) (domain.State, error)
}

// Router converts updates and queues them on the mailbox lane of their
// conversation, so steps of one user never overlap while different users
// are served concurrently.
type Router struct {
	bot     Bot
	handler Handler
	mailbox *conversation.Mailbox
	logger  *slog.Logger
}

// NewRouter creates a router.
func NewRouter(bot Bot, handler Handler, mailbox *conversation.Mailbox, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{bot: bot, handler: handler, mailbox: mailbox, logger: logger}
}

// Route queues u for processing and returns without waiting for it.
func (rt *Router) Route(ctx context.Context, u tgbotapi.Update) error {
	in, ok := Convert(u)
	if !ok {
		rt.logger.DebugContext(ctx, "update ignored", "update_id", u.UpdateID)
		return nil
	}

	if in.CallbackID != "" {
		if _, err := rt.bot.Request(tgbotapi.NewCallback(in.CallbackID, "")); err != nil {
			rt.logger.WarnContext(ctx, "failed to answer callback", "update_id", u.UpdateID, "error", err)
		}
	}

	err := rt.mailbox.Post(in.Event.Identity, func(taskCtx context.Context) {
		rt.process(taskCtx, in)
	})
	if err != nil {
		if errors.Is(err, conversation.ErrMailboxFull) {
			rt.logger.WarnContext(ctx, "conversation backlog full, update dropped",
				"identity_key", in.Event.Identity,
				"update_id", u.UpdateID,
			)
		}
		return err
	}
	return nil
}

func (rt *Router) process(ctx context.Context, in Inbound) {
	ctx = identity.WithChatID(identity.WithKey(ctx, in.Event.Identity), in.ChatID)

	if in.CallbackID != "" && in.MessageID != 0 {
		strip := tgbotapi.NewEditMessageReplyMarkup(in.ChatID, in.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, err := rt.bot.Request(strip); err != nil {
			rt.logger.DebugContext(ctx, "failed to remove inline keyboard", "error", err)
		}
	}

	state, err := rt.handler.Handle(ctx, in.Event, NewChatResponder(rt.bot, in.ChatID))
	if err != nil {
		rt.logger.ErrorContext(ctx, "conversation step failed",
			"kind", in.Event.Kind.String(),
			"state", string(state),
			"error", err,
		)
	}
}
