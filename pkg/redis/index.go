package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/redis/go-redis/v9"
)

const defaultIndexTTL = 10 * time.Minute

// KeyIndex shares row hints between instances through one hash per sheet.
// Entries expire so a long idle cache never outlives manual sheet edits for long.
type KeyIndex struct {
	client *Client
	ttl    time.Duration
}

var _ rowstore.Index = (*KeyIndex)(nil)

func NewKeyIndex(client *Client, ttl time.Duration) (*KeyIndex, error) {
	if client == nil {
		return nil, errors.New("redis client required for key index")
	}
	if ttl <= 0 {
		ttl = defaultIndexTTL
	}
	return &KeyIndex{client: client, ttl: ttl}, nil
}

func (i *KeyIndex) Lookup(ctx context.Context, sheet, key string) (int, bool, error) {
	if i.client.store == nil {
		return 0, false, errNotInitialized
	}
	raw, err := i.client.store.HGet(ctx, i.client.IndexKey(sheet), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("index lookup: %w", err)
	}
	row, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, nil
	}
	return row, true, nil
}

func (i *KeyIndex) Replace(ctx context.Context, sheet string, entries map[string]int) error {
	if i.client.store == nil {
		return errNotInitialized
	}
	hash := i.client.IndexKey(sheet)
	if err := i.client.store.Del(ctx, hash).Err(); err != nil {
		return fmt.Errorf("index reset: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	values := make([]any, 0, len(entries)*2)
	for k, row := range entries {
		values = append(values, k, strconv.Itoa(row))
	}
	if err := i.client.store.HSet(ctx, hash, values...).Err(); err != nil {
		return fmt.Errorf("index store: %w", err)
	}
	return i.client.store.Expire(ctx, hash, i.ttl).Err()
}

func (i *KeyIndex) Put(ctx context.Context, sheet, key string, row int) error {
	if i.client.store == nil {
		return errNotInitialized
	}
	hash := i.client.IndexKey(sheet)
	if err := i.client.store.HSet(ctx, hash, key, strconv.Itoa(row)).Err(); err != nil {
		return fmt.Errorf("index put: %w", err)
	}
	return i.client.store.Expire(ctx, hash, i.ttl).Err()
}

func (i *KeyIndex) Invalidate(ctx context.Context, sheet string) error {
	return i.client.Del(ctx, i.client.IndexKey(sheet))
}
