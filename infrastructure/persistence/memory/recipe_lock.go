package memory

import (
	"context"
	"sync"
	"time"

	"recipes-backend/application/ports"

	"github.com/google/uuid"
)

// RecipeLocker is an in-process ports.RecipeLocker with lease expiry
type RecipeLocker struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]lockEntry
}

type lockEntry struct {
	id        string
	expiresAt time.Time
}

// NewRecipeLocker creates a locker whose leases expire after ttl
func NewRecipeLocker(ttl time.Duration) *RecipeLocker {
	return &RecipeLocker{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]lockEntry),
	}
}

// Acquire takes the lock for recipeID or returns ports.ErrLockHeld
func (l *RecipeLocker) Acquire(ctx context.Context, recipeID, owner string) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[recipeID]; ok && now.Before(held.expiresAt) {
		return nil, ports.ErrLockHeld
	}

	entry := lockEntry{id: uuid.New().String(), expiresAt: now.Add(l.ttl)}
	l.leases[recipeID] = entry
	return &memoryLease{locker: l, recipeID: recipeID, id: entry.id}, nil
}

// Held reports whether a live lease exists for recipeID
func (l *RecipeLocker) Held(recipeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[recipeID]
	return ok && l.now().Before(held.expiresAt)
}

type memoryLease struct {
	locker   *RecipeLocker
	recipeID string
	id       string
}

func (m *memoryLease) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()

	if held, ok := m.locker.leases[m.recipeID]; ok && held.id == m.id {
		delete(m.locker.leases, m.recipeID)
	}
	return nil
}
