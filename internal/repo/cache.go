package repo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Only processor answers are cached here. Balances are always read from the
// database.
func depositStatusKey(reference string) string { return "deposit-status:" + reference }

// CacheDepositStatus writes Redis.
func (r *Repository) CacheDepositStatus(ctx context.Context, reference, payload string, ttl time.Duration) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Set(ctx, depositStatusKey(reference), payload, ttl).Err()
}

// GetCachedDepositStatus reads Redis. A miss is redis.Nil.
func (r *Repository) GetCachedDepositStatus(ctx context.Context, reference string) (string, error) {
	if r.rdb == nil {
		return "", redis.Nil
	}
	return r.rdb.Get(ctx, depositStatusKey(reference)).Result()
}
