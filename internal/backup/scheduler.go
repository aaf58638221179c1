package backup

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Scheduler runs BackupAll on a fixed interval.
type Scheduler struct {
	manager  *Manager
	interval time.Duration

	mu           sync.RWMutex
	cancel       context.CancelFunc
	done         chan struct{}
	lastRun      time.Time
	lastError    error
	runCount     int
	failureCount int
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	LastRun      time.Time     `json:"lastRun"`
	NextRun      time.Time     `json:"nextRun"`
	RunCount     int           `json:"runCount"`
	FailureCount int           `json:"failureCount"`
	LastError    string        `json:"lastError,omitempty"`
}

// NewScheduler creates a scheduler; it does nothing until Start.
func NewScheduler(manager *Manager, interval time.Duration) *Scheduler {
	return &Scheduler{manager: manager, interval: interval}
}

// Start launches the loop. The loop ends when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("backup interval must be positive: %s", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

// Stop ends the loop and waits for a running backup to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce backs up every user now and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	_, err := s.manager.BackupAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = time.Now()
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		s.runCount++
	}
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SchedulerStatus{
		Running:      s.cancel != nil,
		Interval:     s.interval,
		LastRun:      s.lastRun,
		RunCount:     s.runCount,
		FailureCount: s.failureCount,
	}
	if st.Running && !s.lastRun.IsZero() {
		st.NextRun = s.lastRun.Add(s.interval)
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
