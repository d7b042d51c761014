package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SweepFunc is told which users a sweep removed from a task.
type SweepFunc func(ctx context.Context, taskID uuid.UUID, removed []uuid.UUID)

// PresenceSweeper periodically sweeps every task that has editors, so stale
// sessions are reclaimed even when nobody touches the task again.
type PresenceSweeper struct {
	tracker  *PresenceTracker
	interval time.Duration
	onSwept  SweepFunc
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPresenceSweeper creates a sweeper. onSwept may be nil.
func NewPresenceSweeper(tracker *PresenceTracker, interval time.Duration, onSwept SweepFunc, logger *slog.Logger) *PresenceSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PresenceSweeper{
		tracker:  tracker,
		interval: interval,
		onSwept:  onSwept,
		logger:   logger,
	}
}

// Start runs the sweep loop until Stop or ctx is done.
func (s *PresenceSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.logger.Info("presence sweeper started", "interval", s.interval)
}

// Stop halts the loop and waits for the current pass.
func (s *PresenceSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("presence sweeper stopped")
}

func (s *PresenceSweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("presence sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce sweeps all active tasks and returns how many sessions it removed.
// A failure on one task does not stop the pass.
func (s *PresenceSweeper) SweepOnce(ctx context.Context) (int, error) {
	tasks, err := s.tracker.ActiveTasks(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, taskID := range tasks {
		removed, err := s.tracker.SweepStale(ctx, taskID)
		if err != nil {
			s.logger.Warn("sweep task failed", "task_id", taskID, "error", err)
			continue
		}
		total += len(removed)
		if len(removed) > 0 && s.onSwept != nil {
			s.onSwept(ctx, taskID, removed)
		}
	}
	return total, nil
}
