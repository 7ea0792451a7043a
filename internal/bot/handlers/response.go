package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hray3182/MedLine/internal/service"
)

func (h *Handlers) handleReminderReply(ctx context.Context, req *request) {
	outcome, _ := replyOutcome(req.intent)
	h.applyReply(ctx, req, outcome)
}

// applyReply resolves the event the reply refers to and applies the outcome.
// It reports whether the event changed.
func (h *Handlers) applyReply(ctx context.Context, req *request, outcome service.Outcome) bool {
	event, err := h.services.Correlator.Resolve(ctx, req.replyTo, req.user.UserID)
	if errors.Is(err, service.ErrCorrelationNotFound) {
		log.Printf("No reminder event for reply from user %d (handle %q)", req.user.UserID, req.replyTo)
		if req.replyTo != "" {
			h.sendMessage(req.chatID, "That message isn't a reminder waiting for an answer.")
		} else {
			h.sendMessage(req.chatID, "There is no reminder waiting for an answer.")
		}
		return false
	}
	if err != nil {
		log.Printf("Failed to resolve reply: %v", err)
		h.sendMessage(req.chatID, "Failed to record your answer, please try again later")
		return false
	}

	res, err := h.services.Correlator.ApplyResponse(ctx, event, outcome)
	if errors.Is(err, service.ErrAlreadyResolved) {
		h.sendMessage(req.chatID, fmt.Sprintf("ℹ️ The %s dose was already recorded.", event.MedicationName))
		return false
	}
	if err != nil {
		log.Printf("Failed to apply reply to event %s: %v", event.EventID, err)
		h.sendMessage(req.chatID, "Failed to record your answer, please try again later")
		return false
	}

	h.sendMessage(req.chatID, h.resolutionText(res))
	return true
}

func (h *Handlers) resolutionText(res *service.Resolution) string {
	var sb strings.Builder
	event := res.Event

	switch {
	case res.Outcome == service.OutcomeTaken:
		sb.WriteString(fmt.Sprintf("✅ Recorded: **%s** taken", event.MedicationName))
		if event.ResponseReceivedAt != nil {
			sb.WriteString(" at " + h.formatTime(*event.ResponseReceivedAt))
		}
	case res.Snooze != nil && res.Snooze.Kind == service.SnoozeRescheduled:
		sb.WriteString(fmt.Sprintf("⏰ OK, I'll remind you about **%s** again at %s",
			event.MedicationName, h.formatTime(res.Snooze.Until)))
		return sb.String()
	case res.Snooze != nil:
		sb.WriteString(fmt.Sprintf("⏭ No snoozes left, **%s** marked as missed", event.MedicationName))
	default:
		sb.WriteString(fmt.Sprintf("⏭ Skipped **%s**", event.MedicationName))
	}

	switch {
	case res.Reminder == nil:
	case res.Reminder.NextDispatch != nil:
		sb.WriteString("\nNext dose: " + h.formatTime(*res.Reminder.NextDispatch))
	case !res.Reminder.IsActive():
		sb.WriteString("\nThat was the last dose of this reminder.")
	}
	return sb.String()
}
