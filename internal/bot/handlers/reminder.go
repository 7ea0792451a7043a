package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
	"github.com/hray3182/MedLine/internal/rrule"
	"github.com/hray3182/MedLine/internal/service"
)

const remindUsage = "Usage: /remind <medication>[, dosage] | <rule> [| patient]\n" +
	"Example: `/remind Amoxicillin, 500mg | FREQ=HOURLY;INTERVAL=8 | Maria`"

// reminderInput is what a create request carries, from a command or an intent.
type reminderInput struct {
	medication models.Medication
	rule       string
	patient    string
}

// parseRemindArgs reads "<medication>[, dosage] | <rule> [| patient]".
func parseRemindArgs(args string) (reminderInput, bool) {
	parts := strings.Split(args, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return reminderInput{}, false
	}

	in := reminderInput{rule: strings.TrimSpace(parts[1])}
	name, dosage, _ := strings.Cut(parts[0], ",")
	in.medication = models.Medication{Name: strings.TrimSpace(name), Dosage: strings.TrimSpace(dosage)}
	if len(parts) == 3 {
		in.patient = strings.TrimSpace(parts[2])
	}
	if in.medication.Name == "" || in.rule == "" {
		return reminderInput{}, false
	}
	return in, true
}

func (h *Handlers) handleCreateReminder(ctx context.Context, req *request) {
	var in reminderInput
	if req.command != "" {
		parsed, ok := parseRemindArgs(req.args)
		if !ok {
			h.sendMessage(req.chatID, remindUsage)
			return
		}
		in = parsed
	} else {
		in = reminderInput{
			medication: models.Medication{Name: req.intent.Medication, Dosage: req.intent.Dosage},
			rule:       req.intent.RRule,
			patient:    req.intent.PatientName,
		}
		if in.medication.Name == "" || in.rule == "" {
			text := req.intent.AIMessage
			if text == "" {
				text = "Which medication, and how often? " + remindUsage
			}
			h.sendMessage(req.chatID, text)
			return
		}
	}

	patient, err := h.services.Patients.Resolve(ctx, req.user, in.patient, true)
	if err != nil {
		log.Printf("Failed to resolve patient %q: %v", in.patient, err)
		h.sendMessage(req.chatID, "Failed to create the reminder, please try again later")
		return
	}

	reminder, err := h.services.Registry.Create(ctx, service.CreateRequest{
		UserID:      req.user.UserID,
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Medication:  in.medication,
		RuleText:    in.rule,
	})
	var invalid *rrule.InvalidRecurrenceError
	switch {
	case errors.As(err, &invalid):
		h.sendMessage(req.chatID, fmt.Sprintf("⚠️ I can't use that schedule: %s\n\n%s", invalid.Reason, remindUsage))
		return
	case errors.Is(err, service.ErrReminderLimitExceeded):
		h.sendLimitReached(ctx, req)
		return
	case errors.Is(err, service.ErrMedicationRequired):
		h.sendMessage(req.chatID, remindUsage)
		return
	case err != nil:
		log.Printf("Failed to create reminder: %v", err)
		h.sendMessage(req.chatID, "Failed to create the reminder, please try again later")
		return
	}

	if h.wakeup != nil {
		h.wakeup()
	}

	var sb strings.Builder
	sb.WriteString("✅ **Reminder created**\n\n")
	sb.WriteString(reminderLine(reminder))
	if reminder.NextDispatch != nil {
		sb.WriteString(fmt.Sprintf("\nFirst dose: %s", h.formatTime(*reminder.NextDispatch)))
	}
	h.sendMessage(req.chatID, sb.String())
}

func (h *Handlers) sendLimitReached(ctx context.Context, req *request) {
	limit, err := h.services.Registry.Limit(ctx, req.user.UserID)
	if err != nil {
		log.Printf("Failed to read reminder limit: %v", err)
	}
	h.sendMessage(req.chatID, fmt.Sprintf(
		"🚫 You already have %d active reminders, the limit of the free plan.\nCancel one with /cancel or upgrade to premium for unlimited reminders.",
		limit))
}

func (h *Handlers) handleReminderList(ctx context.Context, req *request) {
	reminders, err := h.services.Registry.ListActive(ctx, req.user.UserID)
	if err != nil {
		log.Printf("Failed to list reminders: %v", err)
		h.sendMessage(req.chatID, "Failed to load your reminders, please try again later")
		return
	}

	if len(reminders) == 0 {
		h.sendMessage(req.chatID, "💊 No active reminders. Create one with /remind")
		return
	}

	var sb strings.Builder
	sb.WriteString("💊 **Active reminders**\n\n")
	for _, r := range reminders {
		sb.WriteString(reminderLine(r))
		if r.NextDispatch != nil {
			sb.WriteString(fmt.Sprintf("\n   📅 next: %s", h.formatTime(*r.NextDispatch)))
		}
		sb.WriteString("\n\n")
	}
	h.sendMessage(req.chatID, sb.String())
}

func (h *Handlers) handleNextDose(ctx context.Context, req *request) {
	reminder, err := h.services.Registry.NextDue(ctx, req.user.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		h.sendMessage(req.chatID, "🎉 No upcoming doses")
		return
	}
	if err != nil {
		log.Printf("Failed to find next dose: %v", err)
		h.sendMessage(req.chatID, "Failed to load your reminders, please try again later")
		return
	}

	h.sendMessage(req.chatID, fmt.Sprintf("⏰ Next dose: %s\n%s",
		h.formatTime(*reminder.NextDispatch), reminderLine(reminder)))
}

// handleCancelReminder cancels the reminder matching a medication name,
// optionally for a named patient: "/cancel <medication> [| patient]".
func (h *Handlers) handleCancelReminder(ctx context.Context, req *request) {
	medication, patientName := req.args, ""
	if req.command == "" {
		medication, patientName = req.intent.Medication, req.intent.PatientName
	} else if name, patient, ok := strings.Cut(req.args, "|"); ok {
		medication, patientName = name, patient
	}
	medication = strings.TrimSpace(medication)
	if medication == "" {
		h.sendMessage(req.chatID, "Which medication? Usage: /cancel <medication> [| patient]")
		return
	}

	patient, err := h.services.Patients.Resolve(ctx, req.user, patientName, false)
	if errors.Is(err, service.ErrPatientUnresolved) {
		h.sendMessage(req.chatID, fmt.Sprintf("I don't know anyone called %s", strings.TrimSpace(patientName)))
		return
	}
	if err != nil {
		log.Printf("Failed to resolve patient: %v", err)
		h.sendMessage(req.chatID, "Failed to cancel the reminder, please try again later")
		return
	}

	reminder, err := h.services.Registry.FindMatch(ctx, req.user.UserID, patient.ID, medication)
	if errors.Is(err, repository.ErrNotFound) {
		h.sendMessage(req.chatID, fmt.Sprintf("No active reminder for **%s** (%s)", medication, patient.Name))
		return
	}
	if err != nil {
		log.Printf("Failed to find reminder: %v", err)
		h.sendMessage(req.chatID, "Failed to cancel the reminder, please try again later")
		return
	}

	if err := h.services.Registry.Cancel(ctx, reminder); err != nil {
		log.Printf("Failed to cancel reminder %d: %v", reminder.ReminderID, err)
		h.sendMessage(req.chatID, "Failed to cancel the reminder, please try again later")
		return
	}
	h.sendMessage(req.chatID, fmt.Sprintf("🛑 Cancelled the reminder for **%s** (%s)", reminder.Medication.Name, reminder.PatientName))
}

// reminderLine renders a reminder as one or two lines of markdown.
func reminderLine(r *models.Reminder) string {
	var sb strings.Builder
	sb.WriteString("💊 **" + r.Medication.Name + "**")
	if r.Medication.Dosage != "" {
		sb.WriteString(" " + r.Medication.Dosage)
	}
	if r.PatientName != "" {
		sb.WriteString(" for " + r.PatientName)
	}
	if rule, err := rrule.Parse(r.RecurrenceRule); err == nil {
		sb.WriteString("\n   🔁 " + rrule.Describe(rule))
	}
	return sb.String()
}
