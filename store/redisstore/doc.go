// Package redisstore provides a Redis-based implementation of
// opool.Store.
//
// # Overview
//
// The Redis backend provides:
//
//   - atomic multi-key transitions via server-side Lua scripting
//   - lease expiry via native key TTL (SETEX-equivalent SET ... EX)
//   - the has-queued notification channel via Redis pub/sub
//
// It targets a single unsharded Redis deployment (or a Sentinel-managed
// primary reachable through one *redis.Client); Redis Cluster hash-tag
// correctness is not handled, consistent with opool's non-goals around
// clustering and cross-pool atomicity.
//
// # Concurrency Model
//
// Every opool.Store method maps to exactly one Lua script invocation;
// Redis serializes script execution against all other commands, so no
// additional locking is needed on the Go side. Dynamic per-object keys
// (session, delay, tags, tagged-queue) are computed inside each script
// from the pool name, since an operation may touch an unbounded number
// of them.
//
// # Keyspace
//
// Keys are exactly as listed in spec.md §3, with the pool name as
// prefix instead of the placeholder P; per-object keys are built inside
// the scripts themselves (scripts.go), keys.go only names the pub/sub
// channel and validates pool names.
package redisstore
