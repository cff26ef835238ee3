// Package lock provides keyed, non-blocking mutual exclusion. The send
// workflow takes one lock per user so two sends for the same user never run
// their deliver/purge steps side by side.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrLocked = errors.New("lock already held")

type Locker interface {
	// TryLock returns ErrLocked immediately when key is held elsewhere.
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process Locker, enough for a single API instance.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) TryLock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
