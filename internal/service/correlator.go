package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
)

type Outcome string

const (
	OutcomeTaken           Outcome = "TAKEN"
	OutcomeSnoozeRequested Outcome = "SNOOZE_REQUESTED"
	OutcomeOther           Outcome = "OTHER"
)

// Resolution describes what a reply did, for rendering the answer.
type Resolution struct {
	Event    *models.ReminderEvent
	Outcome  Outcome
	Snooze   *SnoozeResult
	Reminder *models.Reminder
}

// Correlator matches replies to events and applies their transition.
type Correlator struct {
	*core
}

// Resolve finds the event a reply refers to. With a handle the lookup is
// exact; without one it falls back to the user's most recently dispatched
// outstanding event, which is ambiguous when several are open.
func (c *Correlator) Resolve(ctx context.Context, handle string, userID int64) (*models.ReminderEvent, error) {
	var (
		event *models.ReminderEvent
		err   error
	)
	if handle = strings.TrimSpace(handle); handle != "" {
		event, err = c.stores.Events.FindByHandle(ctx, userID, handle)
	} else {
		event, err = c.stores.Events.FindLatestOutstandingByUser(ctx, userID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCorrelationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reply: %w", err)
	}
	return event, nil
}

// ApplyResponse applies a classified reply to the event. Only the first
// resolver of an outstanding event wins; later callers get
// ErrAlreadyResolved and nothing changes.
func (c *Correlator) ApplyResponse(ctx context.Context, event *models.ReminderEvent, outcome Outcome) (*Resolution, error) {
	unlock := c.locks.Lock(event.ReminderID)
	defer unlock()

	res := &Resolution{Event: event, Outcome: outcome}
	now := c.now()

	switch outcome {
	case OutcomeTaken:
		ok, err := c.stores.Events.Resolve(ctx, event.EventID, models.EventTaken, now)
		if err != nil {
			return nil, fmt.Errorf("failed to mark event %s taken: %w", event.EventID, err)
		}
		if !ok {
			c.refresh(ctx, event)
			return res, ErrAlreadyResolved
		}
		c.appendHistory(ctx, event, now)

	case OutcomeOther:
		ok, err := c.stores.Events.Resolve(ctx, event.EventID, models.EventMissed, now)
		if err != nil {
			return nil, fmt.Errorf("failed to mark event %s missed: %w", event.EventID, err)
		}
		if !ok {
			c.refresh(ctx, event)
			return res, ErrAlreadyResolved
		}

	case OutcomeSnoozeRequested:
		result, err := c.snoozeLocked(ctx, event, c.settings.SnoozeDuration, c.settings.MaxSnoozes)
		if err != nil {
			return res, err
		}
		res.Snooze = &result
		if result.Kind == SnoozeRescheduled {
			c.refresh(ctx, event)
			return res, nil
		}

	default:
		return nil, fmt.Errorf("unknown reply outcome %q", outcome)
	}

	reminder, err := c.advanceLocked(ctx, event.ReminderID)
	if err != nil {
		return nil, err
	}
	res.Reminder = reminder
	c.refresh(ctx, event)
	return res, nil
}

// appendHistory records a confirmed dose. A failure is logged; the event
// transition already happened and is not rolled back.
func (c *Correlator) appendHistory(ctx context.Context, event *models.ReminderEvent, takenAt time.Time) {
	patient := strings.TrimSpace(event.PatientName)
	if patient == "" {
		if user, err := c.stores.Users.GetByID(ctx, event.UserID); err == nil {
			patient = user.DisplayName()
		}
	}
	entry := &models.TakenHistoryEntry{
		EntryID:        uuid.New(),
		UserID:         event.UserID,
		PatientName:    patient,
		MedicationName: event.MedicationName,
		TakenAt:        takenAt,
		EventID:        event.EventID,
	}
	if err := c.stores.History.Append(ctx, entry); err != nil {
		log.Printf("Failed to append taken history for event %s: %v", event.EventID, err)
	}
}

func (c *core) refresh(ctx context.Context, event *models.ReminderEvent) {
	fresh, err := c.stores.Events.GetByID(ctx, event.EventID)
	if err != nil {
		log.Printf("Failed to reload event %s: %v", event.EventID, err)
		return
	}
	*event = *fresh
}
