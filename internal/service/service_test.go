package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/repository/memory"
	"github.com/hray3182/MedLine/internal/service"
)

type sentMessage struct {
	target int64
	text   string
	handle string
}

type fakeNotifier struct {
	mu   sync.Mutex
	fail bool
	seq  int
	sent []sentMessage
}

func (f *fakeNotifier) Send(ctx context.Context, target int64, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("channel unavailable")
	}
	f.seq++
	handle := strconv.Itoa(f.seq)
	f.sent = append(f.sent, sentMessage{target: target, text: text, handle: handle})
	return handle, nil
}

func (f *fakeNotifier) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	ctx      context.Context
	svc      *service.Services
	users    *memory.UserRepository
	events   *memory.EventRepository
	history  *memory.HistoryRepository
	patients *memory.PatientRepository
	notifier *fakeNotifier

	mu  sync.Mutex
	now time.Time
}

const testUser int64 = 42

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	return newTestEnvWith(t, start, nil)
}

// newTestEnvWith lets a test wrap the reminder store, e.g. to inject
// failures.
func newTestEnvWith(t *testing.T, start time.Time, wrap func(service.ReminderStore) service.ReminderStore) *testEnv {
	t.Helper()

	db := memory.New()
	var reminders service.ReminderStore = memory.NewReminderRepository(db)
	if wrap != nil {
		reminders = wrap(reminders)
	}
	users := memory.NewUserRepository(db)
	env := &testEnv{
		ctx:      context.Background(),
		users:    users,
		events:   memory.NewEventRepository(db),
		history:  memory.NewHistoryRepository(db),
		patients: memory.NewPatientRepository(db),
		notifier: &fakeNotifier{},
		now:      start,
	}
	env.svc = service.New(service.Stores{
		Reminders: reminders,
		Events:    env.events,
		History:   env.history,
		Users:     users,
		Patients:  env.patients,
		Plans:     users,
	}, env.notifier, service.Settings{
		Location:          time.UTC,
		FreeReminderLimit: 5,
		SnoozeDuration:    time.Hour,
		MaxSnoozes:        2,
		DispatchWorkers:   4,
	})
	env.svc.SetClock(env.clock)

	if _, err := users.GetOrCreate(env.ctx, testUser, "ana"); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) setNow(t time.Time) {
	e.mu.Lock()
	e.now = t
	e.mu.Unlock()
}

func (e *testEnv) createReminder(t *testing.T, medication, rule string) *models.Reminder {
	t.Helper()
	reminder, err := e.svc.Registry.Create(e.ctx, service.CreateRequest{
		UserID:      testUser,
		PatientName: "ana",
		Medication:  models.Medication{Name: medication, Dosage: "1 pill"},
		RuleText:    rule,
	})
	if err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}
	return reminder
}

// dispatch ticks at now and returns the reminder's outstanding event.
func (e *testEnv) dispatch(t *testing.T, reminderID int64, now time.Time) *models.ReminderEvent {
	t.Helper()
	e.setNow(now)
	e.svc.Dispatcher.Tick(e.ctx, now)
	event, err := e.events.FindOutstandingByReminder(e.ctx, reminderID)
	if err != nil {
		t.Fatalf("expected outstanding event for reminder %d: %v", reminderID, err)
	}
	return event
}

func (e *testEnv) reminder(t *testing.T, reminderID int64) *models.Reminder {
	t.Helper()
	reminder, err := e.svc.Registry.Get(e.ctx, reminderID)
	if err != nil {
		t.Fatalf("failed to load reminder %d: %v", reminderID, err)
	}
	return reminder
}

func utc(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}
