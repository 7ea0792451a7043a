package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/notify"
	"github.com/hray3182/MedLine/internal/repository/memory"
	"github.com/hray3182/MedLine/internal/service"
)

type fakeAPI struct {
	mu       sync.Mutex
	seq      int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.seq}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// lastText returns the text of the latest plain message and its message id.
func (f *fakeAPI) lastText() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if msg, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return msg.Text, i + 1
		}
	}
	return "", 0
}

const chatID int64 = 42

type botEnv struct {
	ctx context.Context
	api *fakeAPI
	svc *service.Services
	h   *Handlers
	now time.Time
}

func newBotEnv(t *testing.T) *botEnv {
	t.Helper()

	db := memory.New()
	users := memory.NewUserRepository(db)
	stores := service.Stores{
		Reminders: memory.NewReminderRepository(db),
		Events:    memory.NewEventRepository(db),
		History:   memory.NewHistoryRepository(db),
		Users:     users,
		Patients:  memory.NewPatientRepository(db),
		Plans:     users,
	}

	env := &botEnv{
		ctx: context.Background(),
		api: &fakeAPI{},
		now: time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
	}
	env.svc = service.New(stores, notify.NewTelegram(env.api), service.Settings{
		Location:          time.UTC,
		FreeReminderLimit: 2,
		SnoozeDuration:    time.Hour,
		MaxSnoozes:        2,
	})
	env.svc.SetClock(func() time.Time { return env.now })
	env.h = New(env.api, env.svc, Deps{Users: users}, false)
	return env
}

func (e *botEnv) user() *tgbotapi.User {
	return &tgbotapi.User{ID: chatID, FirstName: "Ana"}
}

func (e *botEnv) command(t *testing.T, text string) string {
	t.Helper()
	name := strings.SplitN(text, " ", 2)[0]
	e.h.HandleMessage(e.ctx, &tgbotapi.Message{
		From:     e.user(),
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	})
	reply, _ := e.api.lastText()
	return reply
}

func (e *botEnv) say(t *testing.T, text string, replyTo int) string {
	t.Helper()
	msg := &tgbotapi.Message{From: e.user(), Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if replyTo != 0 {
		msg.ReplyToMessage = &tgbotapi.Message{MessageID: replyTo}
	}
	e.h.HandleMessage(e.ctx, msg)
	reply, _ := e.api.lastText()
	return reply
}

// dispatchAt runs a tick and returns the message id of the notification.
func (e *botEnv) dispatchAt(t *testing.T, at time.Time) int {
	t.Helper()
	e.now = at
	report := e.svc.Dispatcher.Tick(e.ctx, at)
	if report.Dispatched+report.Redelivered == 0 {
		t.Fatalf("expected a dispatch at %s, got %s", at, report)
	}
	_, id := e.api.lastText()
	return id
}

func TestFlow_CreateDispatchTakenHistory(t *testing.T) {
	env := newBotEnv(t)

	reply := env.command(t, "/remind Aspirin, 1 pill | FREQ=DAILY;BYHOUR=8")
	if !strings.Contains(reply, "Reminder created") || !strings.Contains(reply, "Mon 02 Mar 08:00") {
		t.Fatalf("unexpected create reply %q", reply)
	}

	handle := env.dispatchAt(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	notification, _ := env.api.lastText()
	if !strings.Contains(notification, "Aspirin") {
		t.Fatalf("unexpected notification %q", notification)
	}

	env.now = time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	reply = env.say(t, "taken", handle)
	if !strings.Contains(reply, "Recorded: Aspirin taken") || !strings.Contains(reply, "Next dose: Tue 03 Mar 08:00") {
		t.Fatalf("unexpected taken reply %q", reply)
	}

	reply = env.say(t, "taken", handle)
	if !strings.Contains(reply, "already recorded") {
		t.Fatalf("expected a second answer to be a no-op, got %q", reply)
	}

	reply = env.command(t, "/history")
	if !strings.Contains(reply, "Ana") || !strings.Contains(reply, "Aspirin (1)") {
		t.Fatalf("unexpected history %q", reply)
	}
}

func TestFlow_SnoozeButton(t *testing.T) {
	env := newBotEnv(t)
	env.command(t, "/remind Insulin | FREQ=HOURLY;INTERVAL=12")

	handle := env.dispatchAt(t, time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC))

	env.h.HandleCallbackQuery(env.ctx, &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    env.user(),
		Message: &tgbotapi.Message{MessageID: handle, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    notify.CallbackSnooze,
	})
	reply, _ := env.api.lastText()
	if !strings.Contains(reply, "again at Mon 02 Mar 20:00") {
		t.Fatalf("unexpected snooze reply %q", reply)
	}
	if len(env.api.requests) != 2 {
		t.Fatalf("expected the callback answer and a keyboard edit, got %d requests", len(env.api.requests))
	}
}

func TestFlow_ReplyWithoutOutstandingEvent(t *testing.T) {
	env := newBotEnv(t)

	if reply := env.say(t, "taken", 0); !strings.Contains(reply, "no reminder waiting") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if reply := env.say(t, "taken", 999); !strings.Contains(reply, "isn't a reminder") {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestFlow_RejectionsAndLimit(t *testing.T) {
	env := newBotEnv(t)

	if reply := env.command(t, "/remind Aspirin | FREQ=WEEKLY"); !strings.Contains(reply, "can't use that schedule") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if reply := env.command(t, "/remind Aspirin"); !strings.Contains(reply, "Usage") {
		t.Fatalf("unexpected reply %q", reply)
	}

	env.command(t, "/remind Aspirin | FREQ=DAILY;BYHOUR=8")
	env.command(t, "/remind Vitamin D | FREQ=DAILY;BYHOUR=9 | Maria")
	if reply := env.command(t, "/remind Iron | FREQ=DAILY;BYHOUR=10"); !strings.Contains(reply, "🚫") {
		t.Fatalf("expected the free limit, got %q", reply)
	}

	if reply := env.command(t, "/plan"); !strings.Contains(reply, "2 of 2") {
		t.Fatalf("unexpected plan %q", reply)
	}
}

func TestFlow_ListNextCancelExport(t *testing.T) {
	env := newBotEnv(t)

	if reply := env.command(t, "/next"); !strings.Contains(reply, "No upcoming doses") {
		t.Fatalf("unexpected reply %q", reply)
	}

	env.command(t, "/remind Aspirin | FREQ=DAILY;BYHOUR=20")
	env.command(t, "/remind Vitamin D | FREQ=DAILY;BYHOUR=9 | Maria")

	if reply := env.command(t, "/next"); !strings.Contains(reply, "Vitamin D") || !strings.Contains(reply, "09:00") {
		t.Fatalf("unexpected next %q", reply)
	}
	if reply := env.command(t, "/reminders"); !strings.Contains(reply, "Aspirin") || !strings.Contains(reply, "for Maria") {
		t.Fatalf("unexpected list %q", reply)
	}

	if reply := env.command(t, "/cancel Vitamin D | Joao"); !strings.Contains(reply, "don't know anyone") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if reply := env.command(t, "/cancel vitamin d | maria"); !strings.Contains(reply, "Cancelled") {
		t.Fatalf("unexpected cancel %q", reply)
	}
	if reply := env.command(t, "/cancel Vitamin D | Maria"); !strings.Contains(reply, "No active reminder") {
		t.Fatalf("expected nothing left to cancel, got %q", reply)
	}

	before := len(env.api.sent)
	env.command(t, "/export")
	doc, ok := env.api.sent[len(env.api.sent)-1].(tgbotapi.DocumentConfig)
	if len(env.api.sent) != before+1 || !ok {
		t.Fatalf("expected a calendar document")
	}
	file, ok := doc.File.(tgbotapi.FileBytes)
	if !ok || !strings.Contains(string(file.Bytes), "RRULE:") {
		t.Fatalf("expected an RRULE in the export")
	}
}
