package service

import (
	"sync"
	"time"

	"github.com/hray3182/MedLine/internal/rrule"
)

// Settings holds the tunables the services read from config.
type Settings struct {
	Location          *time.Location
	FreeReminderLimit int
	SnoozeDuration    time.Duration
	MaxSnoozes        int
	DispatchWorkers   int
}

func (s Settings) withDefaults() Settings {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.SnoozeDuration <= 0 {
		s.SnoozeDuration = time.Hour
	}
	if s.MaxSnoozes <= 0 {
		s.MaxSnoozes = 2
	}
	if s.DispatchWorkers <= 0 {
		s.DispatchWorkers = 4
	}
	return s
}

// core is the state every component shares: the stores, the recurrence
// engine, the per-reminder lock and the clock.
type core struct {
	stores   Stores
	notifier Notifier
	engine   *rrule.Engine
	locks    *keyLock
	settings Settings

	clockMu sync.RWMutex
	clock   func() time.Time
}

func (c *core) now() time.Time {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	return c.clock()
}

// Services wires the reminder components around one shared core.
type Services struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Correlator *Correlator
	Snoozer    *SnoozeManager
	History    *HistoryAggregator
	Patients   *PatientResolver

	core *core
}

func New(stores Stores, notifier Notifier, settings Settings) *Services {
	settings = settings.withDefaults()
	c := &core{
		stores:   stores,
		notifier: notifier,
		engine:   rrule.NewEngine(settings.Location),
		locks:    newKeyLock(),
		settings: settings,
		clock:    time.Now,
	}
	return &Services{
		Registry:   &Registry{core: c},
		Dispatcher: &Dispatcher{core: c},
		Correlator: &Correlator{core: c},
		Snoozer:    &SnoozeManager{core: c},
		History:    &HistoryAggregator{core: c},
		Patients:   &PatientResolver{core: c},
		core:       c,
	}
}

// SetClock replaces the time source of every component.
func (s *Services) SetClock(clock func() time.Time) {
	s.core.clockMu.Lock()
	defer s.core.clockMu.Unlock()
	s.core.clock = clock
}

func (s *Services) Settings() Settings {
	return s.core.settings
}

func (s *Services) Engine() *rrule.Engine {
	return s.core.engine
}

func (s *Services) Now() time.Time {
	return s.core.now()
}
