package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL  = 15 * time.Second
	lockPollInitial = 20 * time.Millisecond
	lockPollMax     = 250 * time.Millisecond
)

// SheetLocker implements rowstore.Locker with SETNX + TTL so mutations of one
// sheet are serialized across instances. The TTL bounds how long a crashed
// holder can block others.
type SheetLocker struct {
	client *Client
	ttl    time.Duration
}

var _ rowstore.Locker = (*SheetLocker)(nil)

func NewSheetLocker(client *Client, ttl time.Duration) (*SheetLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &SheetLocker{client: client, ttl: ttl}, nil
}

// Lock polls until the lock is owned or ctx is done.
func (l *SheetLocker) Lock(ctx context.Context, sheet string) (rowstore.Unlock, error) {
	key := l.client.LockKey(sheet)
	owner := uuid.NewString()
	wait := lockPollInitial
	for {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", rowstore.ErrLockTimeout, sheet)
			}
			return nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			return func(ctx context.Context) error { return l.release(ctx, key, owner) }, nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", rowstore.ErrLockTimeout, sheet)
		case <-timer.C:
		}
		if wait *= 2; wait > lockPollMax {
			wait = lockPollMax
		}
	}
}

// release frees the lock only if the owner value still matches.
func (l *SheetLocker) release(ctx context.Context, key, owner string) error {
	value, err := l.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
