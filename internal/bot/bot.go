package bot

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/bot/handlers"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
}

// New wraps an authorized client. The same client is used by the notifier,
// so replies and notifications share one chat identity.
func New(api *tgbotapi.BotAPI, h *handlers.Handlers) *Bot {
	return &Bot{
		api:      api,
		handlers: h,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in update %d: %v", update.UpdateID, r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handlers.HandleMessage(ctx, update.Message)
	}
}
