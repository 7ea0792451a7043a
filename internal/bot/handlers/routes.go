package handlers

import (
	"context"
	"strings"

	"github.com/hray3182/MedLine/internal/ai"
	"github.com/hray3182/MedLine/internal/service"
)

// route is one entry of the dispatch table. Routes are tried in order and
// the first match handles the request.
type route struct {
	name   string
	match  func(req *request) bool
	handle func(ctx context.Context, req *request)
}

func selectRoute(routes []route, req *request) route {
	for _, r := range routes {
		if r.match(req) {
			return r
		}
	}
	// The table always ends with a catch-all
	return routes[len(routes)-1]
}

func (h *Handlers) routeTable() []route {
	return []route{
		{name: "welcome", match: commandOrIntent("start", ai.ActionWelcome), handle: h.handleStart},
		{name: "help", match: commandOrIntent("help", ""), handle: h.handleHelp},
		{name: "create_reminder", match: commandOrIntent("remind", ai.ActionCreateReminder), handle: h.handleCreateReminder},
		{name: "list_reminders", match: commandOrIntent("reminders", ai.ActionListReminders), handle: h.handleReminderList},
		{name: "next_dose", match: commandOrIntent("next", ai.ActionNextDose), handle: h.handleNextDose},
		{name: "history", match: commandOrIntent("history", ai.ActionHistory), handle: h.handleHistory},
		{name: "cancel_reminder", match: commandOrIntent("cancel", ai.ActionCancelReminder), handle: h.handleCancelReminder},
		{name: "plan", match: commandOrIntent("plan", ai.ActionPlan), handle: h.handlePlan},
		{name: "export", match: commandOrIntent("export", ""), handle: h.handleExport},
		{name: "reminder_reply", match: isReminderReply, handle: h.handleReminderReply},
		{name: "unknown_command", match: func(req *request) bool { return req.command != "" }, handle: h.handleUnknownCommand},
		{name: "fallback", match: func(*request) bool { return true }, handle: h.handleFallback},
	}
}

func commandOrIntent(command string, action ai.Action) func(req *request) bool {
	return func(req *request) bool {
		if req.command != "" {
			return req.command == command
		}
		return action != "" && req.intent != nil && req.intent.Action == action
	}
}

// isReminderReply matches answers to a notification: any reply to an
// earlier message, or free text classified as taken, snooze or skip.
func isReminderReply(req *request) bool {
	if req.command != "" {
		return false
	}
	if req.replyTo != "" {
		return true
	}
	_, ok := replyOutcome(req.intent)
	return ok
}

// replyOutcome maps an intent to the reply outcome it stands for.
func replyOutcome(intent *ai.Intent) (service.Outcome, bool) {
	if intent == nil {
		return service.OutcomeOther, false
	}
	switch intent.Action {
	case ai.ActionTaken:
		return service.OutcomeTaken, true
	case ai.ActionSnooze:
		return service.OutcomeSnoozeRequested, true
	case ai.ActionSkip:
		return service.OutcomeOther, true
	}
	return service.OutcomeOther, false
}

var keywords = []struct {
	action ai.Action
	words  []string
}{
	{ai.ActionTaken, []string{"taken", "took", "took it", "done", "yes", "ok", "✅"}},
	{ai.ActionSnooze, []string{"snooze", "later", "remind me later", "not now", "⏰"}},
	{ai.ActionSkip, []string{"skip", "skipped", "no", "missed", "⏭"}},
	{ai.ActionListReminders, []string{"reminders", "my reminders", "list"}},
	{ai.ActionNextDose, []string{"next", "next dose", "what's next", "whats next"}},
	{ai.ActionHistory, []string{"history"}},
	{ai.ActionPlan, []string{"plan"}},
	{ai.ActionWelcome, []string{"hi", "hello", "hey"}},
}

// keywordIntent is the classifier used without an AI backend: the whole
// message must be one of the known words.
func keywordIntent(text string) *ai.Intent {
	normalized := strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!? ")
	for _, k := range keywords {
		for _, word := range k.words {
			if normalized == word {
				return &ai.Intent{Action: k.action}
			}
		}
	}
	return &ai.Intent{Action: ai.ActionUnknown}
}
