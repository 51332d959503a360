package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotHeld is returned when releasing a lock that is not owned by the caller.
var ErrNotHeld = errors.New("lock not held")

// Locker acquires short-lived exclusive leases on string keys.
type Locker interface {
	// Lock returns a release func when the lease was acquired, or ok=false when another holder owns it.
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// LocalLock is a process-local Locker used when Redis is not configured.
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]localLease
	now   func() time.Time
	token uint64
}

type localLease struct {
	token   uint64
	expires time.Time
}

// NewLocalLock constructs an in-memory lock table.
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]localLease), now: time.Now}
}

// Lock implements Locker. A zero ttl means the lease never expires on its own.
func (l *LocalLock) Lock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, exists := l.held[key]; exists {
		if lease.expires.IsZero() || now.Before(lease.expires) {
			return nil, false, nil
		}
	}

	l.token++
	lease := localLease{token: l.token}
	if ttl > 0 {
		lease.expires = now.Add(ttl)
	}
	l.held[key] = lease

	token := lease.token
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		current, exists := l.held[key]
		if !exists || current.token != token {
			return ErrNotHeld
		}
		delete(l.held, key)
		return nil
	}
	return release, true, nil
}
