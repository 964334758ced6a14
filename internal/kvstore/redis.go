package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"breachscan/internal/platform/metrics"
	"breachscan/pkg/sentinel"
)

// Hash tag keeps all registry keys in one slot under Redis Cluster, matching
// the single-store assumption of the adapter contract.
const redisKeyPrefix = "breachscan:"

// maxSwapRetries bounds optimistic-lock retries before surfacing the
// conflict. Every retry implies another writer committed, so the loop makes
// system-wide progress; the bound only guards against pathological contention.
const maxSwapRetries = 50

// Redis is the production Store. Values are plain byte strings; availability
// maps onto PING so an unreachable instance degrades reads to empty results
// instead of errors.
type Redis struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func NewRedis(client *redis.Client, m *metrics.Metrics) *Redis {
	return &Redis{client: client, metrics: m}
}

func (r *Redis) IsAvailable(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(pingCtx).Err() == nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer r.metrics.ObserveStoreOp("get", start)

	value, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	defer r.metrics.ObserveStoreOp("set", start)

	if err := r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

// Swap applies a read-modify-write under WATCH/MULTI with a bounded number of
// optimistic retries, so concurrent appends to the index key cannot lose
// updates on this adapter.
func (r *Redis) Swap(ctx context.Context, key string, update func(old []byte) ([]byte, error)) error {
	start := time.Now()
	defer r.metrics.ObserveStoreOp("swap", start)

	fullKey := redisKeyPrefix + key
	txn := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, fullKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if errors.Is(err, redis.Nil) {
			old = nil
		}
		next, err := update(old)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxSwapRetries; i++ {
		err = r.client.Watch(ctx, txn, fullKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		r.metrics.IncIndexConflict()
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("redis swap %s: %w", key, errors.Join(sentinel.ErrConflict, err))
	}
	return err
}
