package session

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisKey = "zklogin:session"

	maxWatchRetries = 5
)

// RedisBackend stores the record in Redis, for deployments where the
// "device" is a long running service rather than a browser.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend uses namespace to keep several identities on one server;
// an empty namespace uses the default key.
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	key := redisKey
	if namespace != "" {
		key = redisKey + ":" + namespace
	}
	return &RedisBackend{client: client, key: key}
}

func (r *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	return data, nil
}

func (r *RedisBackend) Write(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

// Update runs fn under WATCH so a write from another client between the read
// and the write makes the transaction retry with the new record.
func (r *RedisBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.key).Bytes()
		if err == redis.Nil {
			current = nil
		} else if err != nil {
			return errors.Wrap(err, "failed to get session")
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, r.key)
			} else {
				pipe.Set(ctx, r.key, next, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrConflict
}
