package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/jackc/pgx/v5"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

const (
	eventColumns = `event_id, reminder_id, user_id, patient_name, medication_name, dispatch_time, sent_at,
	correlation_handle, status, snooze_count, snoozed_until, response_received_at, delivery_attempts, created_at`

	// Must match the partial unique index in the migrations
	outstanding = `('AWAITING_RESPONSE', 'SNOOZED')`
)

func scanEvent(row pgx.Row) (*models.ReminderEvent, error) {
	event := &models.ReminderEvent{}
	err := row.Scan(&event.EventID, &event.ReminderID, &event.UserID, &event.PatientName, &event.MedicationName,
		&event.DispatchTime, &event.SentAt, &event.CorrelationHandle, &event.Status, &event.SnoozeCount,
		&event.SnoozedUntil, &event.ResponseReceivedAt, &event.DeliveryAttempts, &event.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return event, nil
}

// Create relies on the outstanding index: a second open event for the same
// reminder fails with ErrConflict.
func (r *EventRepository) Create(ctx context.Context, event *models.ReminderEvent) error {
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminder_events (event_id, reminder_id, user_id, patient_name, medication_name,
		 dispatch_time, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		event.EventID, event.ReminderID, event.UserID, event.PatientName, event.MedicationName,
		event.DispatchTime, string(event.Status), event.CreatedAt,
	).Scan(&event.CreatedAt)
	return mapError(err)
}

func (r *EventRepository) GetByID(ctx context.Context, eventID uuid.UUID) (*models.ReminderEvent, error) {
	return scanEvent(r.db.Pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM reminder_events WHERE event_id = $1`,
		eventID,
	))
}

func (r *EventRepository) FindByHandle(ctx context.Context, userID int64, handle string) (*models.ReminderEvent, error) {
	return scanEvent(r.db.Pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM reminder_events
		 WHERE user_id = $1 AND correlation_handle = $2
		 ORDER BY created_at DESC LIMIT 1`,
		userID, handle,
	))
}

func (r *EventRepository) FindOutstandingByReminder(ctx context.Context, reminderID int64) (*models.ReminderEvent, error) {
	return scanEvent(r.db.Pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM reminder_events
		 WHERE reminder_id = $1 AND status IN `+outstanding,
		reminderID,
	))
}

// FindLatestByReminder returns the reminder's event for its most recent slot,
// whatever its status.
func (r *EventRepository) FindLatestByReminder(ctx context.Context, reminderID int64) (*models.ReminderEvent, error) {
	return scanEvent(r.db.Pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM reminder_events
		 WHERE reminder_id = $1
		 ORDER BY dispatch_time DESC, created_at DESC LIMIT 1`,
		reminderID,
	))
}

func (r *EventRepository) FindLatestOutstandingByUser(ctx context.Context, userID int64) (*models.ReminderEvent, error) {
	return scanEvent(r.db.Pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM reminder_events
		 WHERE user_id = $1 AND status IN `+outstanding+`
		 ORDER BY dispatch_time DESC, sent_at DESC NULLS LAST LIMIT 1`,
		userID,
	))
}

func (r *EventRepository) ListSnoozeElapsed(ctx context.Context, now time.Time) ([]*models.ReminderEvent, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+prefixed("e.", eventColumns)+` FROM reminder_events e
		 JOIN reminders r ON r.reminder_id = e.reminder_id
		 WHERE e.status = 'SNOOZED' AND e.snoozed_until <= $1 AND r.status = 'ACTIVE'
		 ORDER BY e.snoozed_until ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListByReminder returns every event of the reminder, oldest first.
func (r *EventRepository) ListByReminder(ctx context.Context, reminderID int64) ([]*models.ReminderEvent, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+eventColumns+` FROM reminder_events WHERE reminder_id = $1 ORDER BY created_at ASC`,
		reminderID,
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*models.ReminderEvent, error) {
	defer rows.Close()

	var events []*models.ReminderEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepository) MarkDelivered(ctx context.Context, eventID uuid.UUID, handle string, sentAt time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_events
		 SET correlation_handle = $1, sent_at = $2, delivery_attempts = delivery_attempts + 1
		 WHERE event_id = $3`,
		handle, sentAt, eventID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventRepository) RecordDeliveryFailure(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_events SET delivery_attempts = delivery_attempts + 1 WHERE event_id = $1`,
		eventID,
	)
	return err
}

func (r *EventRepository) Redeliver(ctx context.Context, eventID uuid.UUID, handle string, sentAt time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_events
		 SET status = 'AWAITING_RESPONSE', correlation_handle = $1, sent_at = $2, snoozed_until = NULL,
		     delivery_attempts = delivery_attempts + 1
		 WHERE event_id = $3 AND status = 'SNOOZED'`,
		handle, sentAt, eventID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) Resolve(ctx context.Context, eventID uuid.UUID, to models.EventStatus, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_events
		 SET status = $1, response_received_at = $2, snoozed_until = NULL
		 WHERE event_id = $3 AND status IN `+outstanding,
		string(to), at, eventID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) Snooze(ctx context.Context, eventID uuid.UUID, expectedCount int, until time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminder_events
		 SET status = 'SNOOZED', snooze_count = snooze_count + 1, snoozed_until = $1
		 WHERE event_id = $2 AND snooze_count = $3 AND status IN `+outstanding,
		until, eventID, expectedCount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// prefixed qualifies every column of a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
