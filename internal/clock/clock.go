// Package clock drives the simulated market calendar. Each cron firing
// advances the simulation by one trading day and hands the new date to a
// Ticker.
package clock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Ticker receives simulated days.
type Ticker interface {
	Tick(ctx context.Context, day time.Time) error
}

// TickerFunc adapts a function to Ticker.
type TickerFunc func(ctx context.Context, day time.Time) error

func (f TickerFunc) Tick(ctx context.Context, day time.Time) error { return f(ctx, day) }

// Simulator advances a simulated calendar on a cron schedule.
type Simulator struct {
	cron   *cron.Cron
	ticker Ticker
	ctx    context.Context

	mu      sync.Mutex
	day     time.Time
	stopped bool
}

// NewSimulator creates a simulator starting at start (truncated to the
// day). spec is a six-field cron expression or a descriptor such as
// "@every 10s".
func NewSimulator(ctx context.Context, spec string, start time.Time, t Ticker) (*Simulator, error) {
	s := &Simulator{
		cron:   cron.New(cron.WithSeconds()),
		ticker: t,
		ctx:    ctx,
		day:    truncateDay(start),
	}
	if _, err := s.cron.AddFunc(spec, s.step); err != nil {
		return nil, fmt.Errorf("register simulation tick %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Simulator) Start() {
	s.cron.Start()
	slog.Info("simulation clock started", "day", s.Day().Format(time.DateOnly))
}

// Stop stops the scheduler and waits for a running tick to finish. Safe to
// call more than once.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	slog.Info("simulation clock stopped", "day", s.Day().Format(time.DateOnly))
}

// Day returns the current simulated day.
func (s *Simulator) Day() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Step advances one day immediately, outside the schedule.
func (s *Simulator) Step() error {
	return s.advance()
}

func (s *Simulator) step() {
	if err := s.advance(); err != nil {
		slog.Error("simulation tick failed", "err", err)
	}
}

func (s *Simulator) advance() error {
	s.mu.Lock()
	s.day = NextTradingDay(s.day)
	day := s.day
	s.mu.Unlock()

	return s.ticker.Tick(s.ctx, day)
}

// NextTradingDay returns the next weekday after d.
func NextTradingDay(d time.Time) time.Time {
	next := truncateDay(d).AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
