package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
	"github.com/hray3182/MedLine/internal/rrule"
)

var ErrMedicationRequired = errors.New("medication name is required")

// Registry owns reminder identity and status.
type Registry struct {
	*core
}

type CreateRequest struct {
	UserID      int64
	PatientID   *int64
	PatientName string
	Medication  models.Medication
	RuleText    string
}

// Create validates the rule, applies the plan admission limit and stores
// the reminder with its first occurrence anchored at creation time.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*models.Reminder, error) {
	req.Medication.Name = strings.TrimSpace(req.Medication.Name)
	if req.Medication.Name == "" {
		return nil, ErrMedicationRequired
	}

	text := rrule.Normalize(req.RuleText)
	rule, err := rrule.Parse(text)
	if err != nil {
		return nil, err
	}

	now := r.now()
	next, ok := r.engine.NextOccurrence(rule, now, now)
	if !ok {
		return nil, &rrule.InvalidRecurrenceError{Rule: text, Reason: "rule has no future occurrence"}
	}

	limit, err := r.limitFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	reminder := &models.Reminder{
		UserID:         req.UserID,
		PatientID:      req.PatientID,
		PatientName:    strings.TrimSpace(req.PatientName),
		Medication:     req.Medication,
		RecurrenceRule: rule.String(),
		NextDispatch:   &next,
		Status:         models.ReminderActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.stores.Reminders.CreateWithLimit(ctx, reminder, limit); err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			return nil, fmt.Errorf("%w: %d active reminders allowed", ErrReminderLimitExceeded, limit)
		}
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	log.Printf("Created reminder %d for user %d (%s, next=%s)",
		reminder.ReminderID, reminder.UserID, reminder.RecurrenceRule, next.Format("2006-01-02 15:04"))
	return reminder, nil
}

// limitFor returns the active reminder cap for the user's plan; 0 is uncapped.
func (r *Registry) limitFor(ctx context.Context, userID int64) (int, error) {
	if r.stores.Plans == nil {
		return r.settings.FreeReminderLimit, nil
	}
	tier, err := r.stores.Plans.PlanTier(ctx, userID, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to read plan tier: %w", err)
	}
	if tier == models.PlanPremium {
		return 0, nil
	}
	return r.settings.FreeReminderLimit, nil
}

// CountActive reports how many of the user's reminders are active.
func (r *Registry) CountActive(ctx context.Context, userID int64) (int, error) {
	count, err := r.stores.Reminders.CountActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	return count, nil
}

// Limit reports the cap that currently applies to the user.
func (r *Registry) Limit(ctx context.Context, userID int64) (int, error) {
	return r.limitFor(ctx, userID)
}

// Cancel is idempotent: a reminder that is no longer active is left alone.
func (r *Registry) Cancel(ctx context.Context, reminder *models.Reminder) error {
	unlock := r.locks.Lock(reminder.ReminderID)
	defer unlock()

	ok, err := r.stores.Reminders.Transition(ctx, reminder.ReminderID, models.ReminderActive, models.ReminderCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel reminder %d: %w", reminder.ReminderID, err)
	}
	if ok {
		reminder.Status = models.ReminderCancelled
		reminder.NextDispatch = nil
		log.Printf("Cancelled reminder %d for user %d", reminder.ReminderID, reminder.UserID)
	}
	return nil
}

// AdvanceNextDispatch moves the reminder to its next slot, or expires it
// when the rule has none left.
func (r *Registry) AdvanceNextDispatch(ctx context.Context, reminder *models.Reminder) error {
	unlock := r.locks.Lock(reminder.ReminderID)
	defer unlock()

	updated, err := r.advanceLocked(ctx, reminder.ReminderID)
	if err != nil {
		return err
	}
	*reminder = *updated
	return nil
}

// advanceLocked must be called with the reminder's key lock held.
func (c *core) advanceLocked(ctx context.Context, reminderID int64) (*models.Reminder, error) {
	reminder, err := c.stores.Reminders.GetByID(ctx, reminderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if !reminder.IsActive() {
		return reminder, nil
	}

	rule, err := rrule.Parse(reminder.RecurrenceRule)
	if err != nil {
		return nil, fmt.Errorf("stored rule of reminder %d: %w", reminderID, err)
	}

	anchor := reminder.CreatedAt
	if reminder.NextDispatch != nil {
		anchor = *reminder.NextDispatch
	}

	next, ok := c.engine.NextOccurrence(rule, anchor, c.now())
	if !ok {
		if _, err := c.stores.Reminders.Transition(ctx, reminderID, models.ReminderActive, models.ReminderExpired); err != nil {
			return nil, fmt.Errorf("failed to expire reminder %d: %w", reminderID, err)
		}
		reminder.Status = models.ReminderExpired
		reminder.NextDispatch = nil
		log.Printf("Reminder %d expired: no occurrence left", reminderID)
		return reminder, nil
	}

	if err := c.stores.Reminders.UpdateNextDispatch(ctx, reminderID, next); err != nil {
		return nil, fmt.Errorf("failed to advance reminder %d: %w", reminderID, err)
	}
	reminder.NextDispatch = &next
	return reminder, nil
}

func (r *Registry) Get(ctx context.Context, reminderID int64) (*models.Reminder, error) {
	return r.stores.Reminders.GetByID(ctx, reminderID)
}

// ListActive returns the user's active reminders ordered by next dispatch.
func (r *Registry) ListActive(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	reminders, err := r.stores.Reminders.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// FindMatch looks up an active reminder of the patient by medication name,
// ignoring case. Returns repository.ErrNotFound when nothing matches.
func (r *Registry) FindMatch(ctx context.Context, userID int64, patientID *int64, medicationName string) (*models.Reminder, error) {
	reminders, err := r.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, reminder := range reminders {
		if reminder.SamePatient(patientID) && reminder.MatchesMedication(medicationName) {
			return reminder, nil
		}
	}
	return nil, repository.ErrNotFound
}

// NextDue returns the active reminder that fires first.
func (r *Registry) NextDue(ctx context.Context, userID int64) (*models.Reminder, error) {
	reminders, err := r.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	var first *models.Reminder
	for _, reminder := range reminders {
		if reminder.NextDispatch == nil {
			continue
		}
		if first == nil || reminder.NextDispatch.Before(*first.NextDispatch) {
			first = reminder
		}
	}
	if first == nil {
		return nil, repository.ErrNotFound
	}
	return first, nil
}
