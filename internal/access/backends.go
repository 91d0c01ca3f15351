package access

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// MemberStore is the slice of the persistent store that holds members.
type MemberStore interface {
	AddMember(ctx context.Context, userID int64) (bool, error)
	RemoveMember(ctx context.Context, userID int64) (bool, error)
	HasMember(ctx context.Context, userID int64) (bool, error)
	ListMembers(ctx context.Context) ([]int64, error)
}

// StoreBackend keeps members in the run-history database.
type StoreBackend struct {
	store MemberStore
}

func NewStoreBackend(s MemberStore) *StoreBackend {
	return &StoreBackend{store: s}
}

func (b *StoreBackend) Add(ctx context.Context, userID int64) (bool, error) {
	return b.store.AddMember(ctx, userID)
}

func (b *StoreBackend) Remove(ctx context.Context, userID int64) (bool, error) {
	return b.store.RemoveMember(ctx, userID)
}

func (b *StoreBackend) Has(ctx context.Context, userID int64) (bool, error) {
	return b.store.HasMember(ctx, userID)
}

func (b *StoreBackend) List(ctx context.Context) ([]int64, error) {
	return b.store.ListMembers(ctx)
}

// RedisBackend keeps members in a redis set so several bot instances share
// one list.
type RedisBackend struct {
	rdb *redis.Client
	key string
}

func NewRedisBackend(addr, key string) *RedisBackend {
	if key == "" {
		key = "goytbot:sudo"
	}
	return &RedisBackend{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		key: key,
	}
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

func (b *RedisBackend) Add(ctx context.Context, userID int64) (bool, error) {
	n, err := b.rdb.SAdd(ctx, b.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	return n > 0, nil
}

func (b *RedisBackend) Remove(ctx context.Context, userID int64) (bool, error) {
	n, err := b.rdb.SRem(ctx, b.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis srem: %w", err)
	}
	return n > 0, nil
}

func (b *RedisBackend) Has(ctx context.Context, userID int64) (bool, error) {
	ok, err := b.rdb.SIsMember(ctx, b.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

func (b *RedisBackend) List(ctx context.Context) ([]int64, error) {
	raw, err := b.rdb.SMembers(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
