package polytest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TestScheduler is responsible for scheduling periodic test runs.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func() error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// CycleInfo describes one completed scheduler cycle.
type CycleInfo struct {
	Number   int
	Start    time.Time
	Duration time.Duration
	Err      error
}

// DefaultTestScheduler runs the registered callback once, or repeatedly on a
// fixed interval, and keeps per-cycle bookkeeping so callers can inspect
// what the last cycle did.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   *slog.Logger
	callback func() error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	cycles    int
	lastCycle *CycleInfo
}

// NewDefaultTestScheduler creates a new DefaultTestScheduler.
func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger *slog.Logger) *DefaultTestScheduler {
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when tests should run.
func (s *DefaultTestScheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start runs the first cycle synchronously. In run-once mode that is the
// whole job; in continuous mode a goroutine keeps running cycles on the
// interval until Stop or context cancellation.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.logger.Info("Starting scheduler in run-once mode")
		return s.runCycle()
	}

	s.logger.Info("Starting scheduler in continuous mode", "interval", s.interval)
	if err := s.runCycle(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !s.running.Load() {
					return
				}
				// Continuous mode keeps cycling through failed cycles; the
				// failure is stored on the cycle info and logged.
				_ = s.runCycle()

			case <-s.done:
				return

			case <-ctx.Done():
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// runCycle executes the callback once and records the cycle's outcome.
func (s *DefaultTestScheduler) runCycle() error {
	s.mu.Lock()
	s.cycles++
	number := s.cycles
	s.mu.Unlock()

	start := time.Now()
	err := s.callback()
	info := &CycleInfo{
		Number:   number,
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	}

	s.mu.Lock()
	s.lastCycle = info
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Test cycle finished with error",
			"cycle", number,
			"duration", info.Duration,
			"error", err)
	} else {
		s.logger.Info("Test cycle finished",
			"cycle", number,
			"duration", info.Duration)
	}
	return err
}

// Cycles returns how many cycles have run so far.
func (s *DefaultTestScheduler) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// LastCycle returns the most recent completed cycle, or false when no cycle
// has finished yet.
func (s *DefaultTestScheduler) LastCycle() (CycleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCycle == nil {
		return CycleInfo{}, false
	}
	return *s.lastCycle, true
}

// Stop stops the scheduler. Safe to call more than once.
func (s *DefaultTestScheduler) Stop() error {
	if !s.running.Load() {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return nil
	}

	// Flip the state first so an in-flight tick sees it before the signal
	s.running.Store(false)
	close(s.done)

	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the cycle goroutine has terminated or the
// context expires.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for scheduler to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
