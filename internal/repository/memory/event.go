package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
)

type EventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.ReminderEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.events[event.EventID]; exists {
		return repository.ErrConflict
	}
	if event.Status.IsOutstanding() && r.outstandingLocked(event.ReminderID) != nil {
		return repository.ErrConflict
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.db.events[event.EventID] = cloneEvent(event)
	return nil
}

func (r *EventRepository) outstandingLocked(reminderID int64) *models.ReminderEvent {
	for _, event := range r.db.events {
		if event.ReminderID == reminderID && event.Status.IsOutstanding() {
			return event
		}
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, eventID uuid.UUID) (*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event, ok := r.db.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(event), nil
}

func (r *EventRepository) FindByHandle(ctx context.Context, userID int64, handle string) (*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var found *models.ReminderEvent
	for _, event := range r.db.events {
		if event.UserID != userID || event.CorrelationHandle != handle {
			continue
		}
		if found == nil || event.CreatedAt.After(found.CreatedAt) {
			found = event
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(found), nil
}

func (r *EventRepository) FindOutstandingByReminder(ctx context.Context, reminderID int64) (*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event := r.outstandingLocked(reminderID)
	if event == nil {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(event), nil
}

func (r *EventRepository) FindLatestOutstandingByUser(ctx context.Context, userID int64) (*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var latest *models.ReminderEvent
	for _, event := range r.db.events {
		if event.UserID != userID || !event.Status.IsOutstanding() {
			continue
		}
		if latest == nil || dispatchedAfter(event, latest) {
			latest = event
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(latest), nil
}

// dispatchedAfter orders by dispatch slot, then by last delivery.
func dispatchedAfter(a, b *models.ReminderEvent) bool {
	if !a.DispatchTime.Equal(b.DispatchTime) {
		return a.DispatchTime.After(b.DispatchTime)
	}
	switch {
	case a.SentAt == nil:
		return false
	case b.SentAt == nil:
		return true
	}
	return a.SentAt.After(*b.SentAt)
}

func (r *EventRepository) ListSnoozeElapsed(ctx context.Context, now time.Time) ([]*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var events []*models.ReminderEvent
	for _, event := range r.db.events {
		if !event.SnoozeElapsed(now) {
			continue
		}
		if reminder, ok := r.db.reminders[event.ReminderID]; !ok || !reminder.IsActive() {
			continue
		}
		events = append(events, cloneEvent(event))
	}
	return events, nil
}

func (r *EventRepository) MarkDelivered(ctx context.Context, eventID uuid.UUID, handle string, sentAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event, ok := r.db.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	event.CorrelationHandle = handle
	event.SentAt = &sentAt
	event.DeliveryAttempts++
	return nil
}

func (r *EventRepository) RecordDeliveryFailure(ctx context.Context, eventID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event, ok := r.db.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	event.DeliveryAttempts++
	return nil
}

func (r *EventRepository) Redeliver(ctx context.Context, eventID uuid.UUID, handle string, sentAt time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event, ok := r.db.events[eventID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if event.Status != models.EventSnoozed {
		return false, nil
	}
	event.Status = models.EventAwaitingResponse
	event.CorrelationHandle = handle
	event.SentAt = &sentAt
	event.SnoozedUntil = nil
	event.DeliveryAttempts++
	return true, nil
}

func (r *EventRepository) Resolve(ctx context.Context, eventID uuid.UUID, to models.EventStatus, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event, ok := r.db.events[eventID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !event.Status.IsOutstanding() {
		return false, nil
	}
	event.Status = to
	event.ResponseReceivedAt = &at
	event.SnoozedUntil = nil
	return true, nil
}

func (r *EventRepository) Snooze(ctx context.Context, eventID uuid.UUID, expectedCount int, until time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	event, ok := r.db.events[eventID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !event.Status.IsOutstanding() || event.SnoozeCount != expectedCount {
		return false, nil
	}
	event.Status = models.EventSnoozed
	event.SnoozeCount++
	event.SnoozedUntil = &until
	return true, nil
}

// FindLatestByReminder returns the reminder's event for its most recent slot,
// whatever its status.
func (r *EventRepository) FindLatestByReminder(ctx context.Context, reminderID int64) (*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var found *models.ReminderEvent
	for _, event := range r.db.events {
		if event.ReminderID != reminderID {
			continue
		}
		if found == nil || event.DispatchTime.After(found.DispatchTime) ||
			(event.DispatchTime.Equal(found.DispatchTime) && event.CreatedAt.After(found.CreatedAt)) {
			found = event
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(found), nil
}

// ListByReminder returns every event of the reminder, oldest first.
func (r *EventRepository) ListByReminder(ctx context.Context, reminderID int64) ([]*models.ReminderEvent, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var events []*models.ReminderEvent
	for _, event := range r.db.events {
		if event.ReminderID == reminderID {
			events = append(events, cloneEvent(event))
		}
	}
	sortEventsByCreation(events)
	return events, nil
}

func sortEventsByCreation(events []*models.ReminderEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].DispatchTime.Before(events[j].DispatchTime)
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
