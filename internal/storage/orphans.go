package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// OrphanLedger remembers stored paths that no committed note owns yet, with the
// time each was first recorded.
type OrphanLedger interface {
	Add(ctx context.Context, at time.Time, paths ...string) error
	// Due lists paths recorded at or before the given time.
	Due(ctx context.Context, before time.Time) ([]string, error)
	Remove(ctx context.Context, paths ...string) error
}

// RedisOrphanLedger keeps the ledger in a Redis sorted set scored by unix time.
type RedisOrphanLedger struct {
	rdb *redis.Client
	key string
}

func NewRedisOrphanLedger(rdb *redis.Client) *RedisOrphanLedger {
	return &RedisOrphanLedger{rdb: rdb, key: "storage:attachments:pending"}
}

// Add records paths at time at. A path already present keeps its original time.
func (l *RedisOrphanLedger) Add(ctx context.Context, at time.Time, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	members := make([]redis.Z, len(paths))
	for i, p := range paths {
		members[i] = redis.Z{Score: float64(at.Unix()), Member: p}
	}
	return l.rdb.ZAddNX(ctx, l.key, members...).Err()
}

func (l *RedisOrphanLedger) Due(ctx context.Context, before time.Time) ([]string, error) {
	return l.rdb.ZRangeByScore(ctx, l.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
}

func (l *RedisOrphanLedger) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	members := make([]any, len(paths))
	for i, p := range paths {
		members[i] = p
	}
	return l.rdb.ZRem(ctx, l.key, members...).Err()
}
