package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"other pg error", &pgconn.PgError{Code: "23503"}, nil},
		{"plain error", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			switch {
			case tt.in == nil:
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
			case tt.want == nil:
				if got != tt.in {
					t.Fatalf("expected the error unchanged, got %v", got)
				}
			case !errors.Is(got, tt.want):
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// openTestDB connects to TEST_DATABASE_URI and empties every table. The
// tests are skipped when it is not set.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	uri := os.Getenv("TEST_DATABASE_URI")
	if uri == "" {
		t.Skip("TEST_DATABASE_URI not set")
	}
	ctx := context.Background()
	db, err := database.New(ctx, uri)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	_, err = db.Pool.Exec(ctx,
		`TRUNCATE taken_history, reminder_events, reminders, patients, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
	return db
}

const pgUser int64 = 42

func seedReminder(t *testing.T, db *database.DB) *models.Reminder {
	t.Helper()
	ctx := context.Background()

	if _, err := NewUserRepository(db).GetOrCreate(ctx, pgUser, "ana"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	next := time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)
	reminder := &models.Reminder{
		UserID:         pgUser,
		PatientName:    "ana",
		Medication:     models.Medication{Name: "Losartan", Dosage: "50mg"},
		RecurrenceRule: "FREQ=HOURLY;INTERVAL=8",
		NextDispatch:   &next,
		Status:         models.ReminderActive,
		CreatedAt:      time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := NewReminderRepository(db).CreateWithLimit(ctx, reminder, 0); err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}
	return reminder
}

func newEvent(reminder *models.Reminder, slot time.Time) *models.ReminderEvent {
	return &models.ReminderEvent{
		EventID:        uuid.New(),
		ReminderID:     reminder.ReminderID,
		UserID:         reminder.UserID,
		PatientName:    reminder.PatientName,
		MedicationName: reminder.Medication.Name,
		DispatchTime:   slot,
		Status:         models.EventAwaitingResponse,
		CreatedAt:      slot,
	}
}

func TestReminderRepository_CreateWithLimitIsAtomic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := NewUserRepository(db).GetOrCreate(ctx, pgUser, "ana"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	repo := NewReminderRepository(db)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := time.Date(2026, 1, 1, 8+i, 0, 0, 0, time.UTC)
			results <- repo.CreateWithLimit(ctx, &models.Reminder{
				UserID:         pgUser,
				Medication:     models.Medication{Name: fmt.Sprintf("Med %d", i)},
				RecurrenceRule: "FREQ=DAILY",
				NextDispatch:   &next,
				Status:         models.ReminderActive,
				CreatedAt:      next,
			}, 3)
		}(i)
	}
	wg.Wait()
	close(results)

	created, limited := 0, 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrLimitReached):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 3 || limited != 7 {
		t.Fatalf("expected 3 created and 7 limited, got %d and %d", created, limited)
	}
	if count, err := repo.CountActive(ctx, pgUser); err != nil || count != 3 {
		t.Fatalf("expected 3 active reminders, got %d (%v)", count, err)
	}
}

func TestReminderRepository_Transition(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewReminderRepository(db)
	reminder := seedReminder(t, db)

	ok, err := repo.Transition(ctx, reminder.ReminderID, models.ReminderActive, models.ReminderCancelled)
	if err != nil || !ok {
		t.Fatalf("expected the first transition to win, got %v (%v)", ok, err)
	}
	stored, err := repo.GetByID(ctx, reminder.ReminderID)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if stored.Status != models.ReminderCancelled || stored.NextDispatch != nil {
		t.Fatalf("expected CANCELLED with no next dispatch, got %s %v", stored.Status, stored.NextDispatch)
	}

	if ok, err := repo.Transition(ctx, reminder.ReminderID, models.ReminderActive, models.ReminderCancelled); err != nil || ok {
		t.Fatalf("expected a repeated transition to lose, got %v (%v)", ok, err)
	}
	if _, err := repo.Transition(ctx, 9999, models.ReminderActive, models.ReminderCancelled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing reminder, got %v", err)
	}
}

func TestEventRepository_OneOutstandingPerReminder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewEventRepository(db)
	reminder := seedReminder(t, db)

	slot := time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)
	first := newEvent(reminder, slot)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := repo.Create(ctx, newEvent(reminder, slot)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a second outstanding event, got %v", err)
	}

	ok, err := repo.Resolve(ctx, first.EventID, models.EventTaken, slot.Add(5*time.Minute))
	if err != nil || !ok {
		t.Fatalf("expected resolve to win, got %v (%v)", ok, err)
	}
	if ok, err := repo.Resolve(ctx, first.EventID, models.EventMissed, slot.Add(6*time.Minute)); err != nil || ok {
		t.Fatalf("expected a second resolve to lose, got %v (%v)", ok, err)
	}

	next := newEvent(reminder, slot.Add(8*time.Hour))
	if err := repo.Create(ctx, next); err != nil {
		t.Fatalf("expected a new outstanding event once the first resolved: %v", err)
	}
	latest, err := repo.FindLatestByReminder(ctx, reminder.ReminderID)
	if err != nil || latest.EventID != next.EventID {
		t.Fatalf("expected the latest slot's event, got %v (%v)", latest, err)
	}
	if _, err := repo.FindLatestByReminder(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventRepository_SnoozeAndRedeliverCompareAndSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewEventRepository(db)
	reminder := seedReminder(t, db)

	slot := time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)
	event := newEvent(reminder, slot)
	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := repo.MarkDelivered(ctx, event.EventID, "100", slot); err != nil {
		t.Fatalf("failed to mark delivered: %v", err)
	}

	until := slot.Add(time.Hour)
	if ok, err := repo.Snooze(ctx, event.EventID, 0, until); err != nil || !ok {
		t.Fatalf("expected snooze to win, got %v (%v)", ok, err)
	}
	// A caller holding the stale count loses
	if ok, err := repo.Snooze(ctx, event.EventID, 0, until); err != nil || ok {
		t.Fatalf("expected a stale snooze to lose, got %v (%v)", ok, err)
	}

	elapsed, err := repo.ListSnoozeElapsed(ctx, until)
	if err != nil || len(elapsed) != 1 {
		t.Fatalf("expected one elapsed snooze, got %d (%v)", len(elapsed), err)
	}

	if ok, err := repo.Redeliver(ctx, event.EventID, "101", until); err != nil || !ok {
		t.Fatalf("expected redelivery to win, got %v (%v)", ok, err)
	}
	if ok, err := repo.Redeliver(ctx, event.EventID, "102", until); err != nil || ok {
		t.Fatalf("expected a second redelivery to lose, got %v (%v)", ok, err)
	}

	found, err := repo.FindByHandle(ctx, pgUser, "101")
	if err != nil {
		t.Fatalf("expected to find the event by its new handle: %v", err)
	}
	if found.Status != models.EventAwaitingResponse || found.SnoozeCount != 1 || found.SnoozedUntil != nil {
		t.Fatalf("unexpected event after redelivery: %+v", found)
	}
}

func TestHistoryRepository_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewHistoryRepository(db)

	eventID := uuid.New()
	takenAt := time.Date(2026, 1, 1, 16, 5, 0, 0, time.UTC)
	entries := []*models.TakenHistoryEntry{
		{UserID: pgUser, PatientName: "ana", MedicationName: "Losartan", TakenAt: takenAt, EventID: eventID},
		{UserID: pgUser, PatientName: "Maria", MedicationName: "Vitamin D", TakenAt: takenAt.Add(time.Hour)},
	}
	for _, entry := range entries {
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	got, err := repo.ListByUser(ctx, pgUser)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(got) != 2 || got[0].EventID != eventID || got[1].EventID != uuid.Nil {
		t.Fatalf("unexpected history %+v", got)
	}
	if !got[0].TakenAt.Equal(takenAt) {
		t.Fatalf("expected taken at %s, got %s", takenAt, got[0].TakenAt)
	}
}
