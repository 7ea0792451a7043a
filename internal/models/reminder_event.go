package models

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventAwaitingResponse EventStatus = "AWAITING_RESPONSE"
	EventSnoozed          EventStatus = "SNOOZED"
	EventTaken            EventStatus = "TAKEN"
	EventMissed           EventStatus = "MISSED"
)

// OutstandingStatuses are the statuses of an event still waiting for a resolving reply.
var OutstandingStatuses = []EventStatus{EventAwaitingResponse, EventSnoozed}

// IsOutstanding reports whether the status still awaits a resolving reply
func (s EventStatus) IsOutstanding() bool {
	return s == EventAwaitingResponse || s == EventSnoozed
}

// IsTerminal reports whether the status can never change again
func (s EventStatus) IsTerminal() bool {
	return s == EventTaken || s == EventMissed
}

// ReminderEvent is one dispatch of a reminder and its resolution.
type ReminderEvent struct {
	EventID            uuid.UUID   `json:"event_id"`
	ReminderID         int64       `json:"reminder_id"`
	UserID             int64       `json:"user_id"`
	PatientName        string      `json:"patient_name"`
	MedicationName     string      `json:"medication_name"`
	DispatchTime       time.Time   `json:"dispatch_time"`      // the slot this event was dispatched for
	SentAt             *time.Time  `json:"sent_at"`            // last successful delivery
	CorrelationHandle  string      `json:"correlation_handle"` // outbound message id; empty while undelivered
	Status             EventStatus `json:"status"`
	SnoozeCount        int         `json:"snooze_count"`
	SnoozedUntil       *time.Time  `json:"snoozed_until"`
	ResponseReceivedAt *time.Time  `json:"response_received_at"`
	DeliveryAttempts   int         `json:"delivery_attempts"`
	CreatedAt          time.Time   `json:"created_at"`
}

// IsDelivered returns true once the notification reached the channel
func (e *ReminderEvent) IsDelivered() bool {
	return e.CorrelationHandle != ""
}

// SnoozeElapsed reports whether a snoozed event is due for re-delivery at now.
func (e *ReminderEvent) SnoozeElapsed(now time.Time) bool {
	return e.Status == EventSnoozed && e.SnoozedUntil != nil && !e.SnoozedUntil.After(now)
}
