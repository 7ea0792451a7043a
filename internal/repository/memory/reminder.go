package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
)

type ReminderRepository struct {
	db *DB
}

func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) CreateWithLimit(ctx context.Context, reminder *models.Reminder, limit int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if limit > 0 && r.countActiveLocked(reminder.UserID) >= limit {
		return repository.ErrLimitReached
	}

	r.db.nextReminderID++
	reminder.ReminderID = r.db.nextReminderID
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now()
	}
	reminder.UpdatedAt = reminder.CreatedAt
	r.db.reminders[reminder.ReminderID] = cloneReminder(reminder)
	return nil
}

func (r *ReminderRepository) GetByID(ctx context.Context, reminderID int64) (*models.Reminder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	reminder, ok := r.db.reminders[reminderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneReminder(reminder), nil
}

func (r *ReminderRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var reminders []*models.Reminder
	for _, reminder := range r.db.reminders {
		if reminder.UserID == userID && reminder.IsActive() {
			reminders = append(reminders, cloneReminder(reminder))
		}
	}
	sortByNextDispatch(reminders)
	return reminders, nil
}

func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var reminders []*models.Reminder
	for _, reminder := range r.db.reminders {
		if reminder.IsActive() && reminder.NextDispatch != nil && !reminder.NextDispatch.After(now) {
			reminders = append(reminders, cloneReminder(reminder))
		}
	}
	sortByNextDispatch(reminders)
	return reminders, nil
}

func (r *ReminderRepository) CountActive(ctx context.Context, userID int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.countActiveLocked(userID), nil
}

func (r *ReminderRepository) countActiveLocked(userID int64) int {
	count := 0
	for _, reminder := range r.db.reminders {
		if reminder.UserID == userID && reminder.IsActive() {
			count++
		}
	}
	return count
}

func (r *ReminderRepository) UpdateNextDispatch(ctx context.Context, reminderID int64, next time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	reminder, ok := r.db.reminders[reminderID]
	if !ok {
		return repository.ErrNotFound
	}
	reminder.NextDispatch = &next
	reminder.UpdatedAt = time.Now()
	return nil
}

func (r *ReminderRepository) Transition(ctx context.Context, reminderID int64, from, to models.ReminderStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	reminder, ok := r.db.reminders[reminderID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if reminder.Status != from {
		return false, nil
	}
	reminder.Status = to
	if to != models.ReminderActive {
		reminder.NextDispatch = nil
	}
	reminder.UpdatedAt = time.Now()
	return true, nil
}

// sortByNextDispatch orders ascending with unscheduled reminders last.
func sortByNextDispatch(reminders []*models.Reminder) {
	sort.Slice(reminders, func(i, j int) bool {
		a, b := reminders[i], reminders[j]
		switch {
		case a.NextDispatch == nil && b.NextDispatch == nil:
			return a.ReminderID < b.ReminderID
		case a.NextDispatch == nil:
			return false
		case b.NextDispatch == nil:
			return true
		case a.NextDispatch.Equal(*b.NextDispatch):
			return a.ReminderID < b.ReminderID
		}
		return a.NextDispatch.Before(*b.NextDispatch)
	})
}
