// Package ordlock serializes work on a single order across requests.
package ordlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrLockTimeout = errors.New("order is locked by another request")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func(ctx context.Context) error

type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}

func Key(orderID string) string {
	return "order:" + orderID
}

// LocalLocker is an in-process Locker. Slots are reference counted and
// removed once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	sl, ok := l.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, sl)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-sl.ch
			l.unref(key, sl)
		})
		return nil
	}, nil
}

func (l *LocalLocker) unref(key string, sl *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.slots, key)
	}
}
