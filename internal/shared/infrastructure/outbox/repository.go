package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository persists outbox messages. SaveBatch joins the caller's
// transaction when the context carries one.
type Repository interface {
	SaveBatch(ctx context.Context, msgs []*Message) error
	// Pending returns undelivered, not dead-lettered messages whose retry
	// time has passed, oldest first.
	Pending(ctx context.Context, now time.Time, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error
	// Purge deletes messages published before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// MemoryRepository keeps messages in memory for local mode and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	messages map[int64]*Message
	nextID   int64
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: make(map[int64]*Message)}
}

func (r *MemoryRepository) SaveBatch(_ context.Context, msgs []*Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.nextID++
		m.ID = r.nextID
		cp := *m
		r.messages[m.ID] = &cp
	}
	return nil
}

func (r *MemoryRepository) Pending(_ context.Context, now time.Time, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Message
	for _, m := range r.messages {
		if m.PublishedAt != nil || m.DeadLetteredAt != nil {
			continue
		}
		if m.NextRetryAt != nil && m.NextRetryAt.After(now) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkPublished(_ context.Context, id int64, at time.Time) error {
	r.update(id, func(m *Message) { m.PublishedAt = &at })
	return nil
}

func (r *MemoryRepository) MarkFailed(_ context.Context, id int64, reason string, nextRetryAt time.Time) error {
	r.update(id, func(m *Message) {
		m.RetryCount++
		m.LastError = &reason
		m.NextRetryAt = &nextRetryAt
	})
	return nil
}

func (r *MemoryRepository) MarkDead(_ context.Context, id int64, reason string, at time.Time) error {
	r.update(id, func(m *Message) {
		m.DeadLetteredAt = &at
		m.DeadLetterReason = &reason
	})
	return nil
}

func (r *MemoryRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.PublishedAt != nil && m.PublishedAt.Before(before) {
			delete(r.messages, id)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the message with id.
func (r *MemoryRepository) Get(id int64) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

func (r *MemoryRepository) update(id int64, fn func(*Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.messages[id]; ok {
		fn(m)
	}
}
