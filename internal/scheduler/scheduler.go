package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hray3182/MedLine/internal/service"
	"github.com/robfig/cron/v3"
)

// Ticker runs one dispatch pass.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) service.TickReport
}

// Scheduler drives the dispatcher on a cron schedule. Notify forces an
// extra pass, e.g. right after a reminder was created.
type Scheduler struct {
	cron     *cron.Cron
	ticker   Ticker
	spec     string
	clock    func() time.Time
	notifyCh chan struct{}
	runMu    sync.Mutex
}

func New(ticker Ticker, spec string, loc *time.Location, clock func() time.Time) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ticker:   ticker,
		spec:     spec,
		clock:    clock,
		notifyCh: make(chan struct{}, 1),
	}
}

// Notify triggers an immediate check. Non-blocking if a check is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.check(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule dispatch %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.Printf("Scheduler started (%s)", s.spec)

	// Catch up on anything that fell due while the process was down
	s.check(ctx)

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			log.Println("Scheduler stopped")
			return nil
		case <-s.notifyCh:
			log.Println("Scheduler triggered by notification")
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := s.ticker.Tick(ctx, s.clock())
	if report != (service.TickReport{}) {
		log.Printf("Dispatch tick: %s", report)
	}
}
