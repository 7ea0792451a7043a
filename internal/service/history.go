package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
)

// HistoryAggregator builds read-side views over the taken history.
type HistoryAggregator struct {
	*core
}

// PatientHistory is the confirmed doses of one patient, oldest first.
type PatientHistory struct {
	Label   string
	Entries []*models.TakenHistoryEntry
}

type MedicationHistory struct {
	Name    string
	Entries []*models.TakenHistoryEntry
}

// ByMedication splits the entries by medication name, in order of first
// appearance.
func (p PatientHistory) ByMedication() []MedicationHistory {
	var groups []MedicationHistory
	index := make(map[string]int)
	for _, entry := range p.Entries {
		key := strings.ToLower(strings.TrimSpace(entry.MedicationName))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MedicationHistory{Name: entry.MedicationName})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}

// TakenHistoryByPatient groups the user's history by patient label. Only
// the latest entry per event counts; entries without a patient fall back
// to the user's own name.
func (h *HistoryAggregator) TakenHistoryByPatient(ctx context.Context, userID int64) ([]PatientHistory, error) {
	entries, err := h.stores.History.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list taken history: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	fallback := "you"
	if user, err := h.stores.Users.GetByID(ctx, userID); err == nil {
		fallback = user.DisplayName()
	}

	hasPatients := false
	if h.stores.Patients != nil {
		patients, err := h.stores.Patients.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list patients: %w", err)
		}
		hasPatients = len(patients) > 0
	}

	latest := latestByEvent(entries)

	hasPatientNames := false
	for _, entry := range latest {
		if strings.TrimSpace(entry.PatientName) != "" {
			hasPatientNames = true
			break
		}
	}
	useUserLabel := !hasPatients && !hasPatientNames

	sort.SliceStable(latest, func(i, j int) bool {
		return latest[i].TakenAt.Before(latest[j].TakenAt)
	})

	var groups []PatientHistory
	index := make(map[string]int)
	for _, entry := range latest {
		label := strings.TrimSpace(entry.PatientName)
		if useUserLabel || label == "" {
			label = fallback
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, PatientHistory{Label: label})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups, nil
}

// latestByEvent keeps one entry per event id, the one taken last. On equal
// timestamps the later row wins. Entries without an event id are dropped.
func latestByEvent(entries []*models.TakenHistoryEntry) []*models.TakenHistoryEntry {
	var order []uuid.UUID
	byEvent := make(map[uuid.UUID]*models.TakenHistoryEntry)
	for _, entry := range entries {
		if entry.EventID == uuid.Nil {
			continue
		}
		existing, ok := byEvent[entry.EventID]
		if !ok {
			order = append(order, entry.EventID)
			byEvent[entry.EventID] = entry
			continue
		}
		if !entry.TakenAt.Before(existing.TakenAt) {
			byEvent[entry.EventID] = entry
		}
	}

	result := make([]*models.TakenHistoryEntry, 0, len(order))
	for _, id := range order {
		result = append(result, byEvent[id])
	}
	return result
}
