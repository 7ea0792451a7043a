package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
)

// ReminderStore persists reminders. Lookups of missing rows return
// repository.ErrNotFound.
type ReminderStore interface {
	// CreateWithLimit counts the user's ACTIVE reminders and inserts r in one
	// atomic step. A limit of 0 means uncapped. Returns
	// repository.ErrLimitReached when the count is already at the limit.
	CreateWithLimit(ctx context.Context, r *models.Reminder, limit int) error
	GetByID(ctx context.Context, reminderID int64) (*models.Reminder, error)
	// ListActiveByUser is ordered by next dispatch ascending.
	ListActiveByUser(ctx context.Context, userID int64) ([]*models.Reminder, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	CountActive(ctx context.Context, userID int64) (int, error)
	UpdateNextDispatch(ctx context.Context, reminderID int64, next time.Time) error
	// Transition moves the reminder from one status to another and clears
	// next dispatch when leaving ACTIVE. Reports false if the reminder was
	// not in the from status.
	Transition(ctx context.Context, reminderID int64, from, to models.ReminderStatus) (bool, error)
}

// EventStore persists reminder events. Every status change is a
// compare-and-set that reports whether this caller won.
type EventStore interface {
	// Create returns repository.ErrConflict if the reminder already has an
	// outstanding event.
	Create(ctx context.Context, e *models.ReminderEvent) error
	GetByID(ctx context.Context, eventID uuid.UUID) (*models.ReminderEvent, error)
	FindByHandle(ctx context.Context, userID int64, handle string) (*models.ReminderEvent, error)
	FindOutstandingByReminder(ctx context.Context, reminderID int64) (*models.ReminderEvent, error)
	// FindLatestByReminder returns the event with the latest dispatch time
	// in any status.
	FindLatestByReminder(ctx context.Context, reminderID int64) (*models.ReminderEvent, error)
	// FindLatestOutstandingByUser returns the outstanding event with the
	// latest dispatch time.
	FindLatestOutstandingByUser(ctx context.Context, userID int64) (*models.ReminderEvent, error)
	ListSnoozeElapsed(ctx context.Context, now time.Time) ([]*models.ReminderEvent, error)
	MarkDelivered(ctx context.Context, eventID uuid.UUID, handle string, sentAt time.Time) error
	RecordDeliveryFailure(ctx context.Context, eventID uuid.UUID) error
	// Redeliver moves a SNOOZED event back to AWAITING_RESPONSE with a new handle.
	Redeliver(ctx context.Context, eventID uuid.UUID, handle string, sentAt time.Time) (bool, error)
	// Resolve moves an outstanding event to a terminal status.
	Resolve(ctx context.Context, eventID uuid.UUID, to models.EventStatus, at time.Time) (bool, error)
	// Snooze increments the snooze count if it still equals expectedCount
	// and the event is outstanding.
	Snooze(ctx context.Context, eventID uuid.UUID, expectedCount int, until time.Time) (bool, error)
}

type HistoryStore interface {
	Append(ctx context.Context, entry *models.TakenHistoryEntry) error
	ListByUser(ctx context.Context, userID int64) ([]*models.TakenHistoryEntry, error)
}

type UserStore interface {
	GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error)
	GetByID(ctx context.Context, userID int64) (*models.User, error)
}

type PatientStore interface {
	// FindByName matches case-insensitively within the user's patients.
	FindByName(ctx context.Context, userID int64, name string) (*models.Patient, error)
	Create(ctx context.Context, p *models.Patient) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Patient, error)
}

// PlanReader is the only view of billing the scheduler needs.
type PlanReader interface {
	PlanTier(ctx context.Context, userID int64, now time.Time) (models.PlanTier, error)
}

// Notifier delivers a reminder and returns the correlation handle of the
// outbound message.
type Notifier interface {
	Send(ctx context.Context, target int64, text string) (string, error)
}

// Stores groups the persistence collaborators of the services.
type Stores struct {
	Reminders ReminderStore
	Events    EventStore
	History   HistoryStore
	Users     UserStore
	Patients  PatientStore
	Plans     PlanReader
}
