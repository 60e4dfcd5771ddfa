package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client  *redis.Client
	idleTTL time.Duration
}

func NewRedisStore(client *redis.Client, idleTTL time.Duration) *RedisStore {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTimeout
	}
	return &RedisStore{
		client:  client,
		idleTTL: idleTTL,
	}
}

func (r *RedisStore) Load(ctx context.Context, sid, key string) ([]byte, error) {
	data, err := r.client.GetEx(ctx, storeKey(sid, key), r.idleTTL).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStore) CompareAndSwap(ctx context.Context, sid, key string, prev, next []byte) error {
	k := storeKey(sid, key)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return fmt.Errorf("redis get failed: %w", err)
		}

		if !sameValue(current, prev) {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, r.idleTTL)
			return nil
		})
		return err
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return err
}

func (r *RedisStore) Delete(ctx context.Context, sid, key string) error {
	if err := r.client.Del(ctx, storeKey(sid, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sameValue(current, prev []byte) bool {
	if current == nil || prev == nil {
		return current == nil && prev == nil
	}
	return bytes.Equal(current, prev)
}
