package repository

import (
	"context"
	"time"

	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/jackc/pgx/v5"
)

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = `reminder_id, user_id, patient_id, patient_name, medication_name, medication_dosage,
	recurrence_rule, next_dispatch, status, created_at, updated_at`

func scanReminder(row pgx.Row) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	err := row.Scan(&reminder.ReminderID, &reminder.UserID, &reminder.PatientID, &reminder.PatientName,
		&reminder.Medication.Name, &reminder.Medication.Dosage, &reminder.RecurrenceRule,
		&reminder.NextDispatch, &reminder.Status, &reminder.CreatedAt, &reminder.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return reminder, nil
}

func collectReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

// CreateWithLimit serializes creations per user with a transaction-scoped
// advisory lock so the active count cannot change between check and insert.
func (r *ReminderRepository) CreateWithLimit(ctx context.Context, reminder *models.Reminder, limit int) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, reminder.UserID); err != nil {
			return err
		}

		if limit > 0 {
			var count int
			err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM reminders WHERE user_id = $1 AND status = 'ACTIVE'`,
				reminder.UserID,
			).Scan(&count)
			if err != nil {
				return err
			}
			if count >= limit {
				return ErrLimitReached
			}
		}

		return tx.QueryRow(ctx,
			`INSERT INTO reminders (user_id, patient_id, patient_name, medication_name, medication_dosage,
			 recurrence_rule, next_dispatch, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			 RETURNING reminder_id, created_at, updated_at`,
			reminder.UserID, reminder.PatientID, reminder.PatientName, reminder.Medication.Name,
			reminder.Medication.Dosage, reminder.RecurrenceRule, reminder.NextDispatch, string(reminder.Status),
			reminder.CreatedAt,
		).Scan(&reminder.ReminderID, &reminder.CreatedAt, &reminder.UpdatedAt)
	})
}

func (r *ReminderRepository) GetByID(ctx context.Context, reminderID int64) (*models.Reminder, error) {
	return scanReminder(r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE reminder_id = $1`,
		reminderID,
	))
}

func (r *ReminderRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = $1 AND status = 'ACTIVE'
		 ORDER BY next_dispatch ASC NULLS LAST, reminder_id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE status = 'ACTIVE' AND next_dispatch IS NOT NULL AND next_dispatch <= $1
		 ORDER BY next_dispatch ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *ReminderRepository) CountActive(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders WHERE user_id = $1 AND status = 'ACTIVE'`,
		userID,
	).Scan(&count)
	return count, err
}

func (r *ReminderRepository) UpdateNextDispatch(ctx context.Context, reminderID int64, next time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET next_dispatch = $1, updated_at = NOW() WHERE reminder_id = $2`,
		next, reminderID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReminderRepository) Transition(ctx context.Context, reminderID int64, from, to models.ReminderStatus) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders
		 SET status = $1,
		     next_dispatch = CASE WHEN $1 = 'ACTIVE' THEN next_dispatch ELSE NULL END,
		     updated_at = NOW()
		 WHERE reminder_id = $2 AND status = $3`,
		string(to), reminderID, string(from),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reminders WHERE reminder_id = $1)`, reminderID,
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
