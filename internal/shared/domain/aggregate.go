package domain

import (
	"time"

	"github.com/google/uuid"
)

// InitialVersion is the version every record is created with.
const InitialVersion = 1

// AggregateRoot is a versioned record that collects domain events until they
// are flushed to the outbox.
type AggregateRoot interface {
	ID() uuid.UUID
	Version() int
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries identity, timestamps, the optimistic concurrency
// version and pending domain events.
type BaseAggregateRoot struct {
	id           uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
	version      int
	domainEvents []DomainEvent
}

// NewBaseAggregateRoot creates a root with a fresh ID at InitialVersion.
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now().UTC()
	return BaseAggregateRoot{
		id:        uuid.New(),
		createdAt: now,
		updatedAt: now,
		version:   InitialVersion,
	}
}

// RehydrateBaseAggregateRoot recreates a root from persisted state.
func RehydrateBaseAggregateRoot(id uuid.UUID, createdAt, updatedAt time.Time, version int) BaseAggregateRoot {
	return BaseAggregateRoot{
		id:        id,
		createdAt: createdAt,
		updatedAt: updatedAt,
		version:   version,
	}
}

func (a *BaseAggregateRoot) ID() uuid.UUID        { return a.id }
func (a *BaseAggregateRoot) CreatedAt() time.Time { return a.createdAt }
func (a *BaseAggregateRoot) UpdatedAt() time.Time { return a.updatedAt }
func (a *BaseAggregateRoot) Version() int         { return a.version }

// Touch updates the updatedAt timestamp.
func (a *BaseAggregateRoot) Touch() {
	a.updatedAt = time.Now().UTC()
}

// SetVersion records the version the store assigned after a write.
func (a *BaseAggregateRoot) SetVersion(version int) {
	a.version = version
}

// SetUpdatedAt records the timestamp the store assigned after a write.
func (a *BaseAggregateRoot) SetUpdatedAt(t time.Time) {
	a.updatedAt = t
}

// DomainEvents returns all uncommitted domain events.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents removes all uncommitted domain events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// AddDomainEvent adds a domain event to the aggregate.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// CopyBase returns a copy that shares no event slice with the receiver.
func (a *BaseAggregateRoot) CopyBase() BaseAggregateRoot {
	c := *a
	c.domainEvents = append([]DomainEvent(nil), a.domainEvents...)
	return c
}
