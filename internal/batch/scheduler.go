package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/config"
)

// Scheduler decides when the configured pipeline schedules are due. It is a
// gate, not a runner: the watch command polls Due and launches the pipeline
// itself, so a long build never overlaps with its own next slot.
type Scheduler struct {
	schedules map[string]config.ScheduleConfig
	parser    cron.Parser
	lastRun   map[string]time.Time
	running   map[string]bool
	mu        sync.RWMutex
}

// NewScheduler validates the cron expressions and builds a scheduler.
func NewScheduler(schedules []config.ScheduleConfig) (*Scheduler, error) {
	s := &Scheduler{
		schedules: make(map[string]config.ScheduleConfig),
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun:   make(map[string]time.Time),
		running:   make(map[string]bool),
	}
	for _, sc := range schedules {
		if sc.Name == "" {
			return nil, fmt.Errorf("schedule name is required")
		}
		if _, err := s.parser.Parse(sc.Cron); err != nil {
			return nil, fmt.Errorf("schedule %q: invalid cron expression: %w", sc.Name, err)
		}
		s.schedules[sc.Name] = sc
	}
	return s, nil
}

// NextRun returns the next slot for a schedule, or the zero time if the
// name is unknown.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.schedules[name]
	if !ok {
		return time.Time{}
	}
	sched, err := s.parser.Parse(sc.Cron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// Due returns the schedules whose slot has arrived and which are not
// currently running.
func (s *Scheduler) Due(now time.Time) []config.ScheduleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []config.ScheduleConfig
	for name, sc := range s.schedules {
		if s.running[name] {
			continue
		}
		sched, err := s.parser.Parse(sc.Cron)
		if err != nil {
			continue
		}
		last, seen := s.lastRun[name]
		if !seen {
			// First poll establishes the baseline instead of firing
			// immediately.
			continue
		}
		if next := sched.Next(last); !next.After(now) {
			due = append(due, sc)
		}
	}
	return due
}

// Prime records now as the baseline for every schedule. Call once before
// polling Due.
func (s *Scheduler) Prime(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.schedules {
		if _, ok := s.lastRun[name]; !ok {
			s.lastRun[name] = now
		}
	}
}

// MarkStarted flags a schedule as running so Due skips it.
func (s *Scheduler) MarkStarted(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
	s.lastRun[name] = now
}

// MarkFinished clears the running flag.
func (s *Scheduler) MarkFinished(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
}

// Names lists the configured schedule names.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.schedules))
	for name := range s.schedules {
		names = append(names, name)
	}
	return names
}
