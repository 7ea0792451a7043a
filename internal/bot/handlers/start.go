package handlers

import (
	"context"
	"fmt"
)

func (h *Handlers) handleStart(ctx context.Context, req *request) {
	text := fmt.Sprintf(`👋 Hi %s!

I'm MedLine. I remind you, or someone you care for, to take medication and keep a record of every dose.

Tell me what to remember, for example:
• "Amoxicillin 500mg every 8 hours"
• "Remind Maria to take aspirin every day at 8 and 20"

When a reminder arrives, answer with the buttons or reply **taken**, **snooze** or **skip**.

Use /help to see all commands`, req.user.DisplayName())
	h.sendMessage(req.chatID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, req *request) {
	text := `📖 **Commands**

**Reminders**
/remind <medication>[, dosage] | <rule> [| patient] - Create a reminder
/reminders - List active reminders
/next - When is the next dose
/cancel <medication> [| patient] - Stop a reminder

**Records**
/history - Doses taken, per patient
/export - Download your reminders as a calendar

**Account**
/plan - Your plan and reminder limit

Rules use FREQ=HOURLY or FREQ=DAILY with INTERVAL, BYHOUR, BYMINUTE, BYSECOND and UNTIL, e.g. ` + "`FREQ=DAILY;BYHOUR=8,20`" + `

💡 You can also just write in your own words!`
	h.sendMessage(req.chatID, text)
}

func (h *Handlers) handleUnknownCommand(ctx context.Context, req *request) {
	h.sendMessage(req.chatID, "Unknown command, use /help to see the available commands")
}

func (h *Handlers) handleFallback(ctx context.Context, req *request) {
	if req.intent != nil && req.intent.AIMessage != "" {
		h.sendMessage(req.chatID, req.intent.AIMessage)
		return
	}
	h.sendMessage(req.chatID, "Sorry, I didn't understand that. Use /help to see what I can do")
}
