package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock is a SETNX based Locker. It serializes generation runs across replicas;
// each replica still reads its own index, resynced from Postgres on every periodic sweep.
type RedisLock struct {
	client *redis.Client
	prefix string
}

// NewRedisLock wraps an existing client.
func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, prefix: "lock:"}
}

// Lock implements Locker.
func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	const op = "lock.RedisLock.Lock"

	lockKey := r.prefix + key
	token := uuid.NewString()
	acquired, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		const op = "lock.RedisLock.Unlock"
		deleted, err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Int()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if deleted == 0 {
			return ErrNotHeld
		}
		return nil
	}
	return release, true, nil
}
