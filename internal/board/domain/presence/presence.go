// Package presence models who is editing which task. Sessions are advisory
// and never survive a restart as authoritative state.
package presence

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultStaleAfter is how long a session may go without activity.
const DefaultStaleAfter = 5 * time.Minute

// Session is one user editing one task.
type Session struct {
	UserID       uuid.UUID `json:"userId"`
	StartedAt    time.Time `json:"startedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsStale reports whether the session has been idle longer than staleAfter.
func (s Session) IsStale(now time.Time, staleAfter time.Duration) bool {
	return now.Sub(s.LastActivity) > staleAfter
}

// Roster is the set of editors of a task.
type Roster struct {
	TaskID  uuid.UUID   `json:"taskId"`
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"userIds"`
}

// NewRoster builds a roster from sessions, ordered by start time.
func NewRoster(taskID uuid.UUID, sessions []Session) Roster {
	SortSessions(sessions)
	ids := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.UserID)
	}
	return Roster{TaskID: taskID, Count: len(ids), UserIDs: ids}
}

// Contains reports whether userID is on the roster.
func (r Roster) Contains(userID uuid.UUID) bool {
	for _, id := range r.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SortSessions orders sessions by start time, then user id.
func SortSessions(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].StartedAt.Before(sessions[j].StartedAt)
		}
		return sessions[i].UserID.String() < sessions[j].UserID.String()
	})
}

// Store keeps editing sessions. There is at most one session per (task, user).
type Store interface {
	// Touch starts a session at now or refreshes its last activity.
	Touch(ctx context.Context, taskID, userID uuid.UUID, now time.Time) error
	// Remove deletes a session and reports whether it existed.
	Remove(ctx context.Context, taskID, userID uuid.UUID) (bool, error)
	// Sweep removes sessions whose last activity is before cutoff and returns
	// the users that were removed.
	Sweep(ctx context.Context, taskID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error)
	// Clear removes every session of a task and returns the users removed.
	Clear(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error)
	// Roster lists the sessions of a task.
	Roster(ctx context.Context, taskID uuid.UUID) ([]Session, error)
	// ActiveTasks lists tasks with at least one session.
	ActiveTasks(ctx context.Context) ([]uuid.UUID, error)
}
