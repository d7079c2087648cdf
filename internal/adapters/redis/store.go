package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"travel_desk/internal/adapters/observability"
)

// Store backs both the draft snapshot KV and the catalog read cache.
type Store struct{ c *redis.Client }

func New(addr, pass string, db int) *Store {
	return &Store{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (r *Store) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Store) Close() error { return r.c.Close() }

// ---- domain.KVStore ----

func (r *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("kv", "miss")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	observability.ObserveCache("kv", "hit")
	return v, true, nil
}

func (r *Store) SetString(ctx context.Context, key, val string) error {
	observability.ObserveCache("kv", "set")
	return r.c.Set(ctx, key, val, 0).Err()
}

func (r *Store) Delete(ctx context.Context, key string) error {
	observability.ObserveCache("kv", "del")
	return r.c.Del(ctx, key).Err()
}

// Scan walks keys matching pattern in batches; fn stops the walk by
// returning an error.
func (r *Store) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	it := r.c.Scan(ctx, 0, pattern, 200).Iterator()
	for it.Next(ctx) {
		if err := fn(it.Val()); err != nil {
			return err
		}
	}
	return it.Err()
}

// ---- domain.Cache ----

func (r *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Store) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Store) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, key).Err()
}
