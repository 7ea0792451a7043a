package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hray3182/MedLine/internal/models"
)

type SnoozeKind string

const (
	SnoozeRescheduled SnoozeKind = "RESCHEDULED"
	SnoozeExhausted   SnoozeKind = "EXHAUSTED"
)

type SnoozeResult struct {
	Kind  SnoozeKind
	Until time.Time // set when rescheduled
}

// SnoozeManager postpones outstanding events a bounded number of times.
type SnoozeManager struct {
	*core
}

// Snooze postpones the event by duration. The request that would reach
// maxSnoozes exhausts the event instead: it becomes MISSED and the caller
// is expected to advance the reminder. A resolved event yields
// ErrAlreadyResolved. event is refreshed in place.
func (s *SnoozeManager) Snooze(ctx context.Context, event *models.ReminderEvent, duration time.Duration, maxSnoozes int) (SnoozeResult, error) {
	unlock := s.locks.Lock(event.ReminderID)
	defer unlock()

	return s.snoozeLocked(ctx, event, duration, maxSnoozes)
}

func (c *core) snoozeLocked(ctx context.Context, event *models.ReminderEvent, duration time.Duration, maxSnoozes int) (SnoozeResult, error) {
	current, err := c.stores.Events.GetByID(ctx, event.EventID)
	if err != nil {
		return SnoozeResult{}, fmt.Errorf("failed to load event %s: %w", event.EventID, err)
	}
	*event = *current
	if !current.Status.IsOutstanding() {
		return SnoozeResult{}, ErrAlreadyResolved
	}

	now := c.now()
	var result SnoozeResult
	if current.SnoozeCount+1 >= maxSnoozes {
		ok, err := c.stores.Events.Resolve(ctx, current.EventID, models.EventMissed, now)
		if err != nil {
			return SnoozeResult{}, fmt.Errorf("failed to exhaust event %s: %w", current.EventID, err)
		}
		if !ok {
			return SnoozeResult{}, ErrAlreadyResolved
		}
		result = SnoozeResult{Kind: SnoozeExhausted}
		log.Printf("Event %s exhausted its snoozes (reminder %d)", current.EventID, current.ReminderID)
	} else {
		until := now.Add(duration)
		ok, err := c.stores.Events.Snooze(ctx, current.EventID, current.SnoozeCount, until)
		if err != nil {
			return SnoozeResult{}, fmt.Errorf("failed to snooze event %s: %w", current.EventID, err)
		}
		if !ok {
			return SnoozeResult{}, ErrAlreadyResolved
		}
		result = SnoozeResult{Kind: SnoozeRescheduled, Until: until}
		log.Printf("Snoozed event %s until %s (reminder %d)", current.EventID, until.Format("15:04"), current.ReminderID)
	}

	if fresh, err := c.stores.Events.GetByID(ctx, current.EventID); err == nil {
		*event = *fresh
	}
	return result, nil
}
