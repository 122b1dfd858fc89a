package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateSource yields updates by long polling.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ UpdateSource = (*tgbotapi.BotAPI)(nil)

// PollTimeout is the long-poll timeout in seconds.
const PollTimeout = 60

// Poll receives updates until ctx is done.
func Poll(ctx context.Context, src UpdateSource, rt *Router) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = PollTimeout
	updates := src.GetUpdatesChan(cfg)
	defer src.StopReceivingUpdates()

	slog.InfoContext(ctx, "Long polling started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Long polling stopped")
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = rt.Route(ctx, u)
		}
	}
}
