// Package presence provides editing-session stores.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/presence"
	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. It is the default store for a
// single node.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]map[uuid.UUID]presence.Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]map[uuid.UUID]presence.Session)}
}

func (s *MemoryStore) Touch(_ context.Context, taskID, userID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.tasks[taskID]
	if !ok {
		sessions = make(map[uuid.UUID]presence.Session)
		s.tasks[taskID] = sessions
	}
	sess, ok := sessions[userID]
	if !ok {
		sess = presence.Session{UserID: userID, StartedAt: now}
	}
	sess.LastActivity = now
	sessions[userID] = sess
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, taskID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.tasks[taskID]
	if !ok {
		return false, nil
	}
	if _, ok := sessions[userID]; !ok {
		return false, nil
	}
	delete(sessions, userID)
	if len(sessions) == 0 {
		delete(s.tasks, taskID)
	}
	return true, nil
}

func (s *MemoryStore) Sweep(_ context.Context, taskID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []uuid.UUID
	sessions := s.tasks[taskID]
	for userID, sess := range sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(sessions, userID)
			removed = append(removed, userID)
		}
	}
	if sessions != nil && len(sessions) == 0 {
		delete(s.tasks, taskID)
	}
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]uuid.UUID, 0, len(s.tasks[taskID]))
	for userID := range s.tasks[taskID] {
		removed = append(removed, userID)
	}
	delete(s.tasks, taskID)
	return removed, nil
}

func (s *MemoryStore) Roster(_ context.Context, taskID uuid.UUID) ([]presence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]presence.Session, 0, len(s.tasks[taskID]))
	for _, sess := range s.tasks[taskID] {
		out = append(out, sess)
	}
	presence.SortSessions(out)
	return out, nil
}

func (s *MemoryStore) ActiveTasks(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]uuid.UUID, 0, len(s.tasks))
	for id := range s.tasks {
		out = append(out, id)
	}
	return out, nil
}

var _ presence.Store = (*MemoryStore)(nil)
