package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository"
	"github.com/hray3182/MedLine/internal/rrule"
	"golang.org/x/sync/errgroup"
)

// Dispatcher turns due reminders into delivered events. It never advances
// a reminder's next dispatch; only a resolving reply does.
type Dispatcher struct {
	*core
}

// TickReport counts what one tick did.
type TickReport struct {
	Dispatched  int
	Retried     int
	Redelivered int
	Advanced    int
	Skipped     int
	Failed      int
}

func (r TickReport) String() string {
	return fmt.Sprintf("dispatched=%d retried=%d redelivered=%d advanced=%d skipped=%d failed=%d",
		r.Dispatched, r.Retried, r.Redelivered, r.Advanced, r.Skipped, r.Failed)
}

type tickCounter struct {
	mu     sync.Mutex
	report TickReport
}

func (t *tickCounter) add(fn func(r *TickReport)) {
	t.mu.Lock()
	fn(&t.report)
	t.mu.Unlock()
}

// Tick runs one dispatch pass at now. Snoozed events whose window elapsed
// are re-delivered first, then every due reminder is handled in parallel.
// Delivery failures are logged and retried on the next tick.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) TickReport {
	counter := &tickCounter{}

	d.redeliverSnoozed(ctx, now, counter)

	due, err := d.stores.Reminders.ListDue(ctx, now)
	if err != nil {
		log.Printf("Failed to list due reminders: %v", err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return counter.report
	}

	var g errgroup.Group
	g.SetLimit(d.settings.DispatchWorkers)
	for _, reminder := range due {
		reminderID := reminder.ReminderID
		g.Go(func() error {
			d.dispatchOne(ctx, reminderID, now, counter)
			return nil
		})
	}
	_ = g.Wait()

	return counter.report
}

func (d *Dispatcher) redeliverSnoozed(ctx context.Context, now time.Time, counter *tickCounter) {
	events, err := d.stores.Events.ListSnoozeElapsed(ctx, now)
	if err != nil {
		log.Printf("Failed to list snoozed events: %v", err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}

	var g errgroup.Group
	g.SetLimit(d.settings.DispatchWorkers)
	for _, event := range events {
		eventID, reminderID := event.EventID, event.ReminderID
		g.Go(func() error {
			unlock := d.locks.Lock(reminderID)
			defer unlock()

			current, err := d.stores.Events.GetByID(ctx, eventID)
			if err != nil {
				log.Printf("Failed to reload event %s: %v", eventID, err)
				counter.add(func(r *TickReport) { r.Failed++ })
				return nil
			}
			if !current.SnoozeElapsed(now) {
				return nil
			}
			reminder, err := d.stores.Reminders.GetByID(ctx, reminderID)
			if err != nil {
				log.Printf("Failed to load reminder %d: %v", reminderID, err)
				counter.add(func(r *TickReport) { r.Failed++ })
				return nil
			}
			if !reminder.IsActive() {
				return nil
			}
			d.redeliver(ctx, reminder, current, now, counter)
			return nil
		})
	}
	_ = g.Wait()
}

// dispatchOne handles a single due reminder under its key lock.
func (d *Dispatcher) dispatchOne(ctx context.Context, reminderID int64, now time.Time, counter *tickCounter) {
	unlock := d.locks.Lock(reminderID)
	defer unlock()

	// Re-read under the lock; a reply may have advanced it meanwhile
	reminder, err := d.stores.Reminders.GetByID(ctx, reminderID)
	if err != nil {
		log.Printf("Failed to load reminder %d: %v", reminderID, err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}
	if !reminder.IsActive() || reminder.NextDispatch == nil || reminder.NextDispatch.After(now) {
		counter.add(func(r *TickReport) { r.Skipped++ })
		return
	}

	outstanding, err := d.stores.Events.FindOutstandingByReminder(ctx, reminderID)
	switch {
	case err == nil:
		switch {
		case !outstanding.IsDelivered():
			if d.deliver(ctx, reminder, outstanding, now) {
				counter.add(func(r *TickReport) { r.Retried++ })
			} else {
				counter.add(func(r *TickReport) { r.Failed++ })
			}
		case outstanding.SnoozeElapsed(now):
			d.redeliver(ctx, reminder, outstanding, now, counter)
		default:
			counter.add(func(r *TickReport) { r.Skipped++ })
		}
		return
	case !errors.Is(err, repository.ErrNotFound):
		log.Printf("Failed to check outstanding event of reminder %d: %v", reminderID, err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}

	// A resolved event for this very slot means the reply landed but the
	// advance after it did not. Finish the advance instead of asking again.
	latest, err := d.stores.Events.FindLatestByReminder(ctx, reminderID)
	switch {
	case err == nil && !latest.Status.IsOutstanding() && latest.DispatchTime.Equal(*reminder.NextDispatch):
		if _, err := d.advanceLocked(ctx, reminderID); err != nil {
			log.Printf("Failed to advance answered reminder %d: %v", reminderID, err)
			counter.add(func(r *TickReport) { r.Failed++ })
			return
		}
		log.Printf("Advanced reminder %d past its answered slot %s", reminderID, latest.DispatchTime.Format(time.RFC3339))
		counter.add(func(r *TickReport) { r.Advanced++ })
		return
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		log.Printf("Failed to check the last event of reminder %d: %v", reminderID, err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}

	event := &models.ReminderEvent{
		EventID:        uuid.New(),
		ReminderID:     reminder.ReminderID,
		UserID:         reminder.UserID,
		PatientName:    reminder.PatientName,
		MedicationName: reminder.Medication.Name,
		DispatchTime:   *reminder.NextDispatch,
		Status:         models.EventAwaitingResponse,
		CreatedAt:      now,
	}
	if err := d.stores.Events.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			counter.add(func(r *TickReport) { r.Skipped++ })
			return
		}
		log.Printf("Failed to create event for reminder %d: %v", reminderID, err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}

	if d.deliver(ctx, reminder, event, now) {
		counter.add(func(r *TickReport) { r.Dispatched++ })
	} else {
		counter.add(func(r *TickReport) { r.Failed++ })
	}
}

// deliver sends the notification for an undelivered event and records the
// handle. A failed send leaves the event undelivered.
func (d *Dispatcher) deliver(ctx context.Context, reminder *models.Reminder, event *models.ReminderEvent, now time.Time) bool {
	handle, err := d.notifier.Send(ctx, reminder.UserID, ReminderText(reminder, false))
	if err != nil {
		log.Printf("Failed to send reminder %d (event %s): %v", reminder.ReminderID, event.EventID, err)
		if err := d.stores.Events.RecordDeliveryFailure(ctx, event.EventID); err != nil {
			log.Printf("Failed to record delivery failure of event %s: %v", event.EventID, err)
		}
		return false
	}
	if err := d.stores.Events.MarkDelivered(ctx, event.EventID, handle, now); err != nil {
		log.Printf("Failed to record delivery of event %s: %v", event.EventID, err)
		return false
	}
	log.Printf("Sent reminder %d to user %d (event=%s handle=%s)", reminder.ReminderID, reminder.UserID, event.EventID, handle)
	return true
}

// redeliver re-sends a snoozed event on the same event record.
func (d *Dispatcher) redeliver(ctx context.Context, reminder *models.Reminder, event *models.ReminderEvent, now time.Time, counter *tickCounter) {
	handle, err := d.notifier.Send(ctx, reminder.UserID, ReminderText(reminder, true))
	if err != nil {
		log.Printf("Failed to re-send snoozed reminder %d (event %s): %v", reminder.ReminderID, event.EventID, err)
		if err := d.stores.Events.RecordDeliveryFailure(ctx, event.EventID); err != nil {
			log.Printf("Failed to record delivery failure of event %s: %v", event.EventID, err)
		}
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}

	ok, err := d.stores.Events.Redeliver(ctx, event.EventID, handle, now)
	if err != nil {
		log.Printf("Failed to record re-delivery of event %s: %v", event.EventID, err)
		counter.add(func(r *TickReport) { r.Failed++ })
		return
	}
	if !ok {
		counter.add(func(r *TickReport) { r.Skipped++ })
		return
	}
	log.Printf("Re-sent snoozed reminder %d to user %d (event=%s handle=%s)", reminder.ReminderID, reminder.UserID, event.EventID, handle)
	counter.add(func(r *TickReport) { r.Redelivered++ })
}

// ReminderText renders the notification body in the markdown subset the
// format package understands.
func ReminderText(reminder *models.Reminder, afterSnooze bool) string {
	var sb strings.Builder
	if afterSnooze {
		sb.WriteString("⏰ **Snooze is over**\n\n")
	} else {
		sb.WriteString("💊 **Medication time**\n\n")
	}
	sb.WriteString("**" + reminder.Medication.Name + "**")
	if reminder.Medication.Dosage != "" {
		sb.WriteString(" " + reminder.Medication.Dosage)
	}
	if reminder.PatientName != "" {
		sb.WriteString("\nFor: " + reminder.PatientName)
	}
	if rule, err := rrule.Parse(reminder.RecurrenceRule); err == nil {
		sb.WriteString("\n🔄 " + rrule.Describe(rule))
	}
	sb.WriteString("\n\nReply to this message: taken, snooze or skip.")
	return sb.String()
}
