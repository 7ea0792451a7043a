package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// historyLimit caps how many doses are listed per medication.
const historyLimit = 10

func (h *Handlers) handleHistory(ctx context.Context, req *request) {
	groups, err := h.services.History.TakenHistoryByPatient(ctx, req.user.UserID)
	if err != nil {
		log.Printf("Failed to load history: %v", err)
		h.sendMessage(req.chatID, "Failed to load your history, please try again later")
		return
	}
	if len(groups) == 0 {
		h.sendMessage(req.chatID, "📋 No doses recorded yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 **Taken history**\n")
	for _, group := range groups {
		sb.WriteString(fmt.Sprintf("\n👤 **%s**\n", group.Label))
		for _, medication := range group.ByMedication() {
			entries := medication.Entries
			sb.WriteString(fmt.Sprintf("💊 %s (%d)\n", medication.Name, len(entries)))
			if len(entries) > historyLimit {
				entries = entries[len(entries)-historyLimit:]
			}
			for _, entry := range entries {
				sb.WriteString("   • " + h.formatTime(entry.TakenAt) + "\n")
			}
		}
	}
	h.sendMessage(req.chatID, sb.String())
}
