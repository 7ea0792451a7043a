package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/format"
)

// Callback data carried by the reminder buttons. The message the button is
// attached to is the correlation handle.
const (
	CallbackTaken  = "dose:taken"
	CallbackSnooze = "dose:snooze"
	CallbackSkip   = "dose:skip"
)

// Sender is the part of the Telegram client the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers reminder notifications as chat messages. The returned
// handle is the Telegram message id, which replies and button presses refer to.
type Telegram struct {
	api Sender
}

func NewTelegram(api Sender) *Telegram {
	return &Telegram{api: api}
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	msg.ReplyMarkup = ResponseKeyboard()

	sent, err := t.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

func ResponseKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Taken", CallbackTaken),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Snooze", CallbackSnooze),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", CallbackSkip),
		),
	)
}

// Handle renders a Telegram message id as a correlation handle.
func Handle(messageID int) string {
	if messageID == 0 {
		return ""
	}
	return strconv.Itoa(messageID)
}
