package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
)

type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.TakenHistoryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if entry.EntryID == uuid.Nil {
		entry.EntryID = uuid.New()
	}
	e := *entry
	r.db.history = append(r.db.history, &e)
	return nil
}

// ListByUser returns the user's entries in insertion order.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64) ([]*models.TakenHistoryEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var entries []*models.TakenHistoryEntry
	for _, entry := range r.db.history {
		if entry.UserID == userID {
			e := *entry
			entries = append(entries, &e)
		}
	}
	return entries, nil
}
