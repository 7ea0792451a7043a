package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
)

// HistoryRepository is append-only.
type HistoryRepository struct {
	db *database.DB
}

func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.TakenHistoryEntry) error {
	if entry.EntryID == uuid.Nil {
		entry.EntryID = uuid.New()
	}
	var eventID *uuid.UUID
	if entry.EventID != uuid.Nil {
		eventID = &entry.EventID
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO taken_history (entry_id, user_id, patient_name, medication_name, taken_at, event_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.EntryID, entry.UserID, entry.PatientName, entry.MedicationName, entry.TakenAt, eventID,
	)
	return mapError(err)
}

// ListByUser returns the user's entries in insertion order.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64) ([]*models.TakenHistoryEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT entry_id, user_id, patient_name, medication_name, taken_at, event_id
		 FROM taken_history WHERE user_id = $1 ORDER BY created_at ASC, taken_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.TakenHistoryEntry
	for rows.Next() {
		entry := &models.TakenHistoryEntry{}
		var eventID *uuid.UUID
		if err := rows.Scan(&entry.EntryID, &entry.UserID, &entry.PatientName, &entry.MedicationName,
			&entry.TakenAt, &eventID); err != nil {
			return nil, err
		}
		if eventID != nil {
			entry.EventID = *eventID
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
