// Package lock serializes approval of a single payment across replicas.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/payment-settlement/internal/apperr"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = apperr.New(apperr.Conflict, "lock is held by another process")

// ReleaseFunc gives a lock back. Releasing an expired or stolen lock is a no-op.
type ReleaseFunc func(ctx context.Context) error

// Locker hands out short-lived exclusive leases on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// MemoryLocker is a process-local Locker. It is only correct for a single replica.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

var _ Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, held := l.leases[key]; held && now.Before(expires) {
		return nil, ErrNotAcquired
	}
	expires := now.Add(ttl)
	l.leases[key] = expires

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[key]; ok && cur.Equal(expires) {
			delete(l.leases, key)
		}
		return nil
	}, nil
}
