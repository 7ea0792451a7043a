package models

import (
	"strings"
	"time"
)

type ReminderStatus string

const (
	ReminderActive    ReminderStatus = "ACTIVE"
	ReminderCancelled ReminderStatus = "CANCELLED"
	ReminderExpired   ReminderStatus = "EXPIRED"
)

type Medication struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

type Reminder struct {
	ReminderID     int64          `json:"reminder_id"`
	UserID         int64          `json:"user_id"`
	PatientID      *int64         `json:"patient_id"`   // nil when the user is the patient
	PatientName    string         `json:"patient_name"` // label captured at creation time
	Medication     Medication     `json:"medication"`
	RecurrenceRule string         `json:"recurrence_rule"` // canonical bounded RRULE text
	NextDispatch   *time.Time     `json:"next_dispatch"`   // nil once cancelled or expired
	Status         ReminderStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsActive returns true if the reminder still produces dispatches
func (r *Reminder) IsActive() bool {
	return r.Status == ReminderActive
}

// SamePatient reports whether the reminder belongs to the given patient reference.
func (r *Reminder) SamePatient(patientID *int64) bool {
	if r.PatientID == nil || patientID == nil {
		return r.PatientID == nil && patientID == nil
	}
	return *r.PatientID == *patientID
}

// MatchesMedication compares medication names case-insensitively
func (r *Reminder) MatchesMedication(name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Medication.Name), strings.TrimSpace(name))
}
