package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/opoolio/opool"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements opool.Store against a single Redis deployment.
// It assumes an unsharded keyspace (no Redis Cluster hash-tag handling):
// cross-pool atomicity and clustering are explicit non-goals (spec.md §1).
//
// Delays and expirations are sent to Redis as whole seconds, truncated:
// a delay under one second queues the objects immediately, and a claim or
// extend expiration under one second is rejected by Redis as an invalid
// expire time.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing *redis.Client. Store construction does
// not itself open a connection; the client's own pool handles that.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

var _ opool.Store = (*RedisStore)(nil)

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// QueueTagged implements opool.Queuer.
func (s *RedisStore) QueueTagged(ctx context.Context, pool string, tags map[string]string, objects []string, delay time.Duration) ([]string, error) {
	if err := validatePoolName(pool); err != nil {
		return nil, err
	}
	argv := make([]interface{}, 0, 2+len(tags)*2+1+len(objects))
	argv = append(argv, int64(delay/time.Second), len(tags))
	for t, v := range tags {
		argv = append(argv, t, v)
	}
	argv = append(argv, len(objects))
	for _, o := range objects {
		argv = append(argv, o)
	}
	res, err := scriptQueueTagged.Run(ctx, s.rdb, []string{pool}, argv...).Result()
	if err != nil {
		return nil, err
	}
	return toStringSlice(res), nil
}

// Claim implements opool.Claimer.
func (s *RedisStore) Claim(ctx context.Context, pool string, maxCount int, expiration time.Duration, tag string, session string) ([]string, error) {
	if err := validatePoolName(pool); err != nil {
		return nil, err
	}
	res, err := scriptClaim.Run(ctx, s.rdb, []string{pool},
		maxCount, int64(expiration/time.Second), tag, session,
	).Result()
	if err != nil {
		return nil, err
	}
	return toStringSlice(res), nil
}

func boolResult(res interface{}, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("redisstore: unexpected script reply type %T", res)
	}
	return n != 0, nil
}

// Extend implements opool.Claimer.
func (s *RedisStore) Extend(ctx context.Context, pool string, objects []string, session string, expiration time.Duration) (bool, error) {
	if err := validatePoolName(pool); err != nil {
		return false, err
	}
	argv := make([]interface{}, 0, 2+len(objects))
	argv = append(argv, session, int64(expiration/time.Second))
	for _, o := range objects {
		argv = append(argv, o)
	}
	res, err := scriptExtend.Run(ctx, s.rdb, []string{pool}, argv...).Result()
	return boolResult(res, err)
}

// Release implements opool.Claimer.
func (s *RedisStore) Release(ctx context.Context, pool string, objects []string, session string) (bool, error) {
	if err := validatePoolName(pool); err != nil {
		return false, err
	}
	argv := make([]interface{}, 0, 1+len(objects))
	argv = append(argv, session)
	for _, o := range objects {
		argv = append(argv, o)
	}
	res, err := scriptRelease.Run(ctx, s.rdb, []string{pool}, argv...).Result()
	return boolResult(res, err)
}

// Requeue implements opool.Claimer.
func (s *RedisStore) Requeue(ctx context.Context, pool string, objects []string, session string, delay time.Duration) (bool, error) {
	if err := validatePoolName(pool); err != nil {
		return false, err
	}
	argv := make([]interface{}, 0, 2+len(objects))
	argv = append(argv, session, int64(delay/time.Second))
	for _, o := range objects {
		argv = append(argv, o)
	}
	res, err := scriptRequeue.Run(ctx, s.rdb, []string{pool}, argv...).Result()
	return boolResult(res, err)
}

// CleanExpired implements opool.Cleaner.
func (s *RedisStore) CleanExpired(ctx context.Context, pool string) ([]string, error) {
	if err := validatePoolName(pool); err != nil {
		return nil, err
	}
	res, err := scriptCleanExpired.Run(ctx, s.rdb, []string{pool}).Result()
	if err != nil {
		return nil, err
	}
	return toStringSlice(res), nil
}

// CleanDelayed implements opool.Cleaner.
func (s *RedisStore) CleanDelayed(ctx context.Context, pool string) ([]string, error) {
	if err := validatePoolName(pool); err != nil {
		return nil, err
	}
	res, err := scriptCleanDelayed.Run(ctx, s.rdb, []string{pool}).Result()
	if err != nil {
		return nil, err
	}
	return toStringSlice(res), nil
}
