package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/config"
	"github.com/google/uuid"
)

// Job is the body of one scheduled responsibility.
type Job func(ctx context.Context) error

// Trigger fires Job at fixed wall-clock times (At, "HH:MM" in the
// scheduler's location) or on a fixed interval (Every).
type Trigger struct {
	Name         string
	At           []string
	Every        time.Duration
	WeekdaysOnly bool
	Job          Job
}

type trigger struct {
	Trigger
	at        []string
	queue     chan time.Time
	lastFired map[string]string
	lastRun   time.Time
}

// Scheduler is a single minute-aligned dispatcher. Every tick it works out
// which triggers are due and hands them to that trigger's own worker, so a
// slow job only delays itself.
type Scheduler struct {
	triggers []*trigger
	location *time.Location
	fallback time.Duration
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

type Config struct {
	Location      *time.Location
	FallbackDelay time.Duration
}

func NewScheduler(triggers []Trigger, cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		location: cfg.Location,
		fallback: cfg.FallbackDelay,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, t := range triggers {
		if t.Job == nil {
			cancel()
			return nil, fmt.Errorf("trigger %q has no job", t.Name)
		}
		if len(t.At) == 0 && t.Every <= 0 {
			cancel()
			return nil, fmt.Errorf("trigger %q has neither times nor interval", t.Name)
		}
		tr := &trigger{
			Trigger:   t,
			queue:     make(chan time.Time, 1),
			lastFired: make(map[string]string),
		}
		for _, hm := range t.At {
			h, m, err := config.ParseClock(hm)
			if err != nil {
				cancel()
				return nil, fmt.Errorf("trigger %q: %w", t.Name, err)
			}
			tr.at = append(tr.at, fmt.Sprintf("%02d:%02d", h, m))
		}
		s.triggers = append(s.triggers, tr)
	}
	return s, nil
}

func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("Scheduler started with %d triggers", len(s.triggers))

	start := s.now()
	for _, t := range s.triggers {
		t.lastRun = start.Truncate(time.Minute)
		s.wg.Add(1)
		go s.worker(t)
	}
	s.wg.Add(1)
	go s.dispatch()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// untilNextMinute sleeps to the top of the next minute rather than a fixed
// interval, so the loop never drifts.
func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

func (s *Scheduler) dispatch() {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(untilNextMinute(s.now()))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.Tick(s.now())
	}
}

// Tick queues every trigger due at now. A trigger whose previous run is
// still going is skipped for this tick.
func (s *Scheduler) Tick(now time.Time) []string {
	fired := make([]string, 0)
	for _, t := range s.triggers {
		if !s.due(t, now) {
			continue
		}
		select {
		case t.queue <- now:
			fired = append(fired, t.Name)
		default:
			log.Printf("Scheduler: %s still running, skipping tick at %s", t.Name, now.In(s.location).Format("15:04"))
		}
	}
	return fired
}

func (s *Scheduler) due(t *trigger, now time.Time) bool {
	local := now.In(s.location)
	if t.WeekdaysOnly && (local.Weekday() == time.Saturday || local.Weekday() == time.Sunday) {
		return false
	}

	if t.Every > 0 {
		// Ticks land a few milliseconds after the minute; compare whole minutes.
		minute := now.Truncate(time.Minute)
		if t.lastRun.IsZero() {
			t.lastRun = minute
			return false
		}
		if minute.Sub(t.lastRun) < t.Every {
			return false
		}
		t.lastRun = minute
		return true
	}

	hm := local.Format("15:04")
	today := local.Format("2006-01-02")
	for _, at := range t.at {
		if at != hm || t.lastFired[at] == today {
			continue
		}
		t.lastFired[at] = today
		return true
	}
	return false
}

func (s *Scheduler) worker(t *trigger) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case at := <-t.queue:
			if err := s.run(t, at); err != nil {
				log.Printf("Scheduler: %s failed: %v", t.Name, err)
				select {
				case <-s.ctx.Done():
					return
				case <-time.After(s.fallback):
				}
			}
		}
	}
}

func (s *Scheduler) run(t *trigger, at time.Time) (err error) {
	runID := uuid.NewString()[:8]
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in run %s: %v", runID, r)
		}
	}()

	started := time.Now()
	if err := t.Job(s.ctx); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if d := time.Since(started); d > time.Second {
		log.Printf("Scheduler: %s run %s for %s took %s", t.Name, runID, at.In(s.location).Format("2006-01-02 15:04"), d.Round(time.Millisecond))
	}
	return nil
}
