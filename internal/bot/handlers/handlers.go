package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/ai"
	"github.com/hray3182/MedLine/internal/format"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/notify"
	"github.com/hray3182/MedLine/internal/service"
)

// API is the part of the Telegram client the handlers use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the collaborators besides the services. Classifier and Wakeup
// may be nil.
type Deps struct {
	Users      service.UserStore
	Classifier ai.Classifier
	Wakeup     func()
}

type Handlers struct {
	api        API
	services   *service.Services
	users      service.UserStore
	classifier ai.Classifier
	wakeup     func()
	devMode    bool
	routes     []route
}

func New(api API, services *service.Services, deps Deps, devMode bool) *Handlers {
	h := &Handlers{
		api:        api,
		services:   services,
		users:      deps.Users,
		classifier: deps.Classifier,
		wakeup:     deps.Wakeup,
		devMode:    devMode,
	}
	h.routes = h.routeTable()
	return h
}

// request is one incoming message after user lookup and classification.
type request struct {
	chatID  int64
	user    *models.User
	text    string
	command string
	args    string
	// replyTo is the correlation handle of the message being replied to
	replyTo string
	intent  *ai.Intent
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	// Ensure user exists
	user, err := h.users.GetOrCreate(ctx, msg.From.ID, displayName(msg.From))
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	req := &request{
		chatID: msg.Chat.ID,
		user:   user,
		text:   strings.TrimSpace(msg.Text),
	}
	if msg.IsCommand() {
		req.command = msg.Command()
		req.args = strings.TrimSpace(msg.CommandArguments())
	} else {
		req.intent = h.classify(ctx, req.text)
	}
	if msg.ReplyToMessage != nil {
		req.replyTo = notify.Handle(msg.ReplyToMessage.MessageID)
	}

	h.debug("Incoming message", "from", user.UserID, "command", req.command, "replyTo", req.replyTo, "text", req.text)

	r := selectRoute(h.routes, req)
	h.debug("Selected route", "route", r.name)
	r.handle(ctx, req)
}

// HandleCallbackQuery handles the Taken / Snooze / Skip buttons of a
// reminder notification. The message carrying the buttons is the handle.
func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	if _, err := h.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
	if callback.Message == nil || callback.From == nil {
		return
	}

	var outcome service.Outcome
	switch callback.Data {
	case notify.CallbackTaken:
		outcome = service.OutcomeTaken
	case notify.CallbackSnooze:
		outcome = service.OutcomeSnoozeRequested
	case notify.CallbackSkip:
		outcome = service.OutcomeOther
	default:
		return
	}

	user, err := h.users.GetOrCreate(ctx, callback.From.ID, displayName(callback.From))
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	req := &request{
		chatID:  callback.Message.Chat.ID,
		user:    user,
		replyTo: notify.Handle(callback.Message.MessageID),
	}
	if h.applyReply(ctx, req, outcome) {
		h.clearKeyboard(callback.Message.Chat.ID, callback.Message.MessageID)
	}
}

// classify reads a free-text message with the AI classifier and falls back
// to keyword matching when it is missing or fails.
func (h *Handlers) classify(ctx context.Context, text string) *ai.Intent {
	if h.classifier != nil {
		intent, err := h.classifier.Classify(ctx, text)
		if err == nil {
			h.debug("Parsed intent", "action", intent.Action, "medication", intent.Medication, "rrule", intent.RRule)
			return intent
		}
		log.Printf("Failed to classify message, using keywords: %v", err)
	}
	return keywordIntent(text)
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (h *Handlers) clearKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := h.api.Request(edit); err != nil {
		log.Printf("Failed to clear keyboard: %v", err)
	}
}

func (h *Handlers) debug(msg string, kv ...interface{}) {
	if !h.devMode {
		return
	}
	var sb strings.Builder
	sb.WriteString("[DEBUG] ")
	sb.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", kv[i], kv[i+1]))
	}
	log.Println(sb.String())
}

func displayName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}

// formatTime renders t in the scheduler location.
func (h *Handlers) formatTime(t time.Time) string {
	return t.In(h.services.Settings().Location).Format("Mon 02 Jan 15:04")
}
