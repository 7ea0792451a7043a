// Package memory keeps every record in process memory. It has the same
// semantics as the PostgreSQL repositories and backs dev mode and tests.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
)

type DB struct {
	mu             sync.Mutex
	nextReminderID int64
	nextPatientID  int64
	users          map[int64]*models.User
	patients       map[int64]*models.Patient
	reminders      map[int64]*models.Reminder
	events         map[uuid.UUID]*models.ReminderEvent
	history        []*models.TakenHistoryEntry
}

func New() *DB {
	return &DB{
		users:     make(map[int64]*models.User),
		patients:  make(map[int64]*models.Patient),
		reminders: make(map[int64]*models.Reminder),
		events:    make(map[uuid.UUID]*models.ReminderEvent),
	}
}

func cloneReminder(r *models.Reminder) *models.Reminder {
	c := *r
	if r.PatientID != nil {
		id := *r.PatientID
		c.PatientID = &id
	}
	if r.NextDispatch != nil {
		t := *r.NextDispatch
		c.NextDispatch = &t
	}
	return &c
}

func cloneEvent(e *models.ReminderEvent) *models.ReminderEvent {
	c := *e
	if e.SentAt != nil {
		t := *e.SentAt
		c.SentAt = &t
	}
	if e.SnoozedUntil != nil {
		t := *e.SnoozedUntil
		c.SnoozedUntil = &t
	}
	if e.ResponseReceivedAt != nil {
		t := *e.ResponseReceivedAt
		c.ResponseReceivedAt = &t
	}
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.ProUntil != nil {
		t := *u.ProUntil
		c.ProUntil = &t
	}
	return &c
}
