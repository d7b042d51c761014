package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedUserDirectory keeps recently resolved users in an expiring LRU so
// display names in audit details and broadcasts do not cost a query each.
type CachedUserDirectory struct {
	repo  user.Repository
	cache *expirable.LRU[uuid.UUID, *user.User]
}

// NewCachedUserDirectory wraps repo with a cache of size entries living ttl.
func NewCachedUserDirectory(repo user.Repository, size int, ttl time.Duration) *CachedUserDirectory {
	if size <= 0 {
		size = 1024
	}
	return &CachedUserDirectory{
		repo:  repo,
		cache: expirable.NewLRU[uuid.UUID, *user.User](size, nil, ttl),
	}
}

func (d *CachedUserDirectory) Create(ctx context.Context, u *user.User) error {
	if err := d.repo.Create(ctx, u); err != nil {
		return err
	}
	d.cache.Add(u.ID, u)
	return nil
}

func (d *CachedUserDirectory) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := d.cache.Get(id); ok {
		return u, nil
	}
	u, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Add(id, u)
	return u, nil
}

func (d *CachedUserDirectory) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return d.repo.FindByEmail(ctx, email)
}

// List always reads through so newly registered users are eligible for
// assignment immediately. The results warm the cache.
func (d *CachedUserDirectory) List(ctx context.Context) ([]*user.User, error) {
	users, err := d.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		d.cache.Add(u.ID, u)
	}
	return users, nil
}

// Len reports the number of cached users.
func (d *CachedUserDirectory) Len() int {
	return d.cache.Len()
}

var _ user.Repository = (*CachedUserDirectory)(nil)
