package handlers

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/calendar"
	"github.com/hray3182/MedLine/internal/models"
)

func (h *Handlers) handlePlan(ctx context.Context, req *request) {
	active, err := h.services.Registry.CountActive(ctx, req.user.UserID)
	if err != nil {
		log.Printf("Failed to count reminders: %v", err)
		h.sendMessage(req.chatID, "Failed to load your plan, please try again later")
		return
	}
	limit, err := h.services.Registry.Limit(ctx, req.user.UserID)
	if err != nil {
		log.Printf("Failed to read reminder limit: %v", err)
		h.sendMessage(req.chatID, "Failed to load your plan, please try again later")
		return
	}

	tier := req.user.Tier(h.services.Now())
	text := fmt.Sprintf("💳 Plan: **%s**\n", tier)
	if limit == 0 {
		text += fmt.Sprintf("Active reminders: %d (unlimited)", active)
	} else {
		text += fmt.Sprintf("Active reminders: %d of %d", active, limit)
	}
	if tier == models.PlanPremium && req.user.ProUntil != nil {
		text += "\nPremium until " + h.formatTime(*req.user.ProUntil)
	}
	h.sendMessage(req.chatID, text)
}

// handleExport sends the active reminders as an .ics calendar file.
func (h *Handlers) handleExport(ctx context.Context, req *request) {
	reminders, err := h.services.Registry.ListActive(ctx, req.user.UserID)
	if err != nil {
		log.Printf("Failed to list reminders: %v", err)
		h.sendMessage(req.chatID, "Failed to export your reminders, please try again later")
		return
	}
	if len(reminders) == 0 {
		h.sendMessage(req.chatID, "💊 No active reminders to export")
		return
	}

	if err := h.sendCalendar(req.chatID, reminders); err != nil {
		log.Printf("Failed to export calendar: %v", err)
		h.sendMessage(req.chatID, "Failed to export your reminders, please try again later")
	}
}

func (h *Handlers) sendCalendar(chatID int64, reminders []*models.Reminder) error {
	cal, err := calendar.Build(reminders, h.services.Now())
	if err != nil {
		return err
	}
	data, err := calendar.Encode(cal)
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "medline.ics", Bytes: data})
	doc.Caption = fmt.Sprintf("📅 %d reminders", len(reminders))
	_, err = h.api.Send(doc)
	return err
}
