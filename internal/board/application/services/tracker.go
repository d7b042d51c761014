package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/presence"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// PresenceTracker manages who is editing which task. Rosters are advisory and
// are never treated as a source of truth.
type PresenceTracker struct {
	store      presence.Store
	staleAfter time.Duration
	now        func() time.Time
	metrics    observability.Metrics
	logger     *slog.Logger
}

// TrackerOption configures a PresenceTracker.
type TrackerOption func(*PresenceTracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *PresenceTracker) { t.now = now }
}

// WithStaleAfter sets the inactivity window after which a session is dropped.
func WithStaleAfter(d time.Duration) TrackerOption {
	return func(t *PresenceTracker) {
		if d > 0 {
			t.staleAfter = d
		}
	}
}

// WithTrackerMetrics sets the metrics sink.
func WithTrackerMetrics(m observability.Metrics) TrackerOption {
	return func(t *PresenceTracker) { t.metrics = m }
}

// NewPresenceTracker creates a tracker over store.
func NewPresenceTracker(store presence.Store, logger *slog.Logger, opts ...TrackerOption) *PresenceTracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &PresenceTracker{
		store:      store,
		staleAfter: presence.DefaultStaleAfter,
		now:        time.Now,
		metrics:    observability.NoopMetrics{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StaleAfter returns the inactivity window.
func (t *PresenceTracker) StaleAfter() time.Duration { return t.staleAfter }

// Now reads the tracker clock.
func (t *PresenceTracker) Now() time.Time { return t.now() }

// StartSession starts or refreshes the session of userID on taskID.
func (t *PresenceTracker) StartSession(ctx context.Context, taskID, userID uuid.UUID) (presence.Roster, error) {
	if err := t.store.Touch(ctx, taskID, userID, t.now()); err != nil {
		return presence.Roster{}, err
	}
	return t.Roster(ctx, taskID)
}

// EndSession removes the session if there is one.
func (t *PresenceTracker) EndSession(ctx context.Context, taskID, userID uuid.UUID) (presence.Roster, error) {
	if _, err := t.store.Remove(ctx, taskID, userID); err != nil {
		return presence.Roster{}, err
	}
	return t.Roster(ctx, taskID)
}

// ReleaseSession ends the session of userID on taskID unless it was
// refreshed after since, in which case another connection of the user still
// holds it. It reports whether a session was ended.
func (t *PresenceTracker) ReleaseSession(ctx context.Context, taskID, userID uuid.UUID, since time.Time) (presence.Roster, bool, error) {
	sessions, err := t.store.Roster(ctx, taskID)
	if err != nil {
		return presence.Roster{}, false, err
	}
	for _, s := range sessions {
		if s.UserID == userID && s.LastActivity.After(since) {
			roster, err := t.Roster(ctx, taskID)
			return roster, false, err
		}
	}
	removed, err := t.store.Remove(ctx, taskID, userID)
	if err != nil {
		return presence.Roster{}, false, err
	}
	roster, err := t.Roster(ctx, taskID)
	return roster, removed, err
}

// SweepStale drops sessions idle for longer than the stale window and
// returns the users that were removed.
func (t *PresenceTracker) SweepStale(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	cutoff := t.now().Add(-t.staleAfter)
	removed, err := t.store.Sweep(ctx, taskID, cutoff)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		t.metrics.Counter(observability.MetricPresenceSwept, int64(len(removed)))
		t.logger.DebugContext(ctx, "swept stale editing sessions", "task_id", taskID, "removed", len(removed))
	}
	return removed, nil
}

// ClearTask ends every session on taskID, e.g. after the task is deleted.
func (t *PresenceTracker) ClearTask(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	removed, err := t.store.Clear(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		t.logger.DebugContext(ctx, "cleared editing sessions", "task_id", taskID, "removed", len(removed))
	}
	return removed, nil
}

// Heartbeat refreshes the caller's session and sweeps the rest of the task.
func (t *PresenceTracker) Heartbeat(ctx context.Context, taskID, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := t.store.Touch(ctx, taskID, userID, t.now()); err != nil {
		return nil, err
	}
	return t.SweepStale(ctx, taskID)
}

// Roster returns the live editors of taskID. Stale sessions that have not
// been swept yet are filtered out.
func (t *PresenceTracker) Roster(ctx context.Context, taskID uuid.UUID) (presence.Roster, error) {
	sessions, err := t.store.Roster(ctx, taskID)
	if err != nil {
		return presence.Roster{}, err
	}
	now := t.now()
	live := sessions[:0]
	for _, s := range sessions {
		if !s.IsStale(now, t.staleAfter) {
			live = append(live, s)
		}
	}
	return presence.NewRoster(taskID, live), nil
}

// ActiveTasks lists tasks that have at least one session.
func (t *PresenceTracker) ActiveTasks(ctx context.Context) ([]uuid.UUID, error) {
	return t.store.ActiveTasks(ctx)
}
