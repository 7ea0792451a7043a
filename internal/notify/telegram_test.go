package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	msg := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: 100 + len(f.sent)}, nil
}

func TestTelegram_SendReturnsMessageID(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewTelegram(sender)

	handle, err := notifier.Send(context.Background(), 42, "💊 **Aspirin**")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != "101" {
		t.Fatalf("expected handle 101, got %q", handle)
	}

	msg := sender.sent[0]
	if msg.ChatID != 42 || msg.Text != "💊 Aspirin" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(msg.Entities) != 1 || msg.Entities[0].Type != "bold" {
		t.Fatalf("expected one bold entity, got %+v", msg.Entities)
	}
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(keyboard.InlineKeyboard[0]) != 3 {
		t.Fatalf("expected the response keyboard, got %#v", msg.ReplyMarkup)
	}
	if data := keyboard.InlineKeyboard[0][0].CallbackData; data == nil || *data != CallbackTaken {
		t.Fatalf("expected taken button first")
	}
}

func TestTelegram_SendFailure(t *testing.T) {
	notifier := NewTelegram(&fakeSender{err: errors.New("blocked")})
	if _, err := notifier.Send(context.Background(), 42, "hi"); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestHandle(t *testing.T) {
	if Handle(0) != "" {
		t.Fatalf("expected empty handle for missing message")
	}
	if Handle(77) != "77" {
		t.Fatalf("expected 77")
	}
}
