package models

import (
	"time"

	"github.com/google/uuid"
)

// TakenHistoryEntry is written once per confirmed dose and never updated.
type TakenHistoryEntry struct {
	EntryID        uuid.UUID `json:"entry_id"`
	UserID         int64     `json:"user_id"`
	PatientName    string    `json:"patient_name"`
	MedicationName string    `json:"medication_name"`
	TakenAt        time.Time `json:"taken_at"`
	EventID        uuid.UUID `json:"event_id"`
}
