package rowstore

import (
	"context"
	"fmt"
	"sync"
)

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

// Locker serializes mutations of a sheet.
type Locker interface {
	Lock(ctx context.Context, name string) (Unlock, error)
}

// MemoryLocker is an in-process Locker keyed by sheet name.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: map[string]chan struct{}{}}
}

func (l *MemoryLocker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[name] = ch
	}
	return ch
}

func (l *MemoryLocker) Lock(ctx context.Context, name string) (Unlock, error) {
	ch := l.slot(name)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func(context.Context) error {
			once.Do(func() { <-ch })
			return nil
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, name, ctx.Err())
	}
}
