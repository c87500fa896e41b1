// Package lock serializes pipeline runs, within one process or across
// replicas sharing a Redis.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned by TryLock when another holder owns the lock.
var ErrHeld = errors.New("lock is held")

// Locker hands out a single lock. The returned unlock func is idempotent.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryLock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
