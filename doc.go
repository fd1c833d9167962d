// Package opool provides a distributed, at-least-once work queue — an
// object pool — backed by a shared key-value store that supports atomic
// server-side scripting and pub/sub.
//
// # Overview
//
// Producers enqueue opaque string objects. Consumers claim one or more
// objects for exclusive processing, then either release them (permanent
// removal), requeue them (return for future reclaim, possibly delayed), or
// extend their lease. Crashed consumers are recovered by a janitor that
// detects expired leases and appends the affected objects to the tail of
// the queue.
//
// opool does not mandate any particular key-value store. Implementations
// plug in by satisfying the Store interface; store/redisstore provides a
// Redis-backed implementation built on atomic Lua scripts.
//
// # Delivery Semantics
//
// opool provides at-least-once processing guarantees. An object may be
// delivered more than once if:
//
//   - a consumer crashes before releasing it
//   - the lease expires before the consumer finishes
//   - the consumer explicitly requeues it after a failed attempt
//
// Handlers must therefore be idempotent.
//
// # Lease Model
//
// When an object is claimed, it moves from queued to claimed and receives
// a lease (its deadline is implicit in the store's TTL on the session key).
// While the lease is valid, the object is not eligible for claiming by
// other consumers. A Claim auto-extends its own lease at roughly half the
// lease duration while it remains unresolved, so a live consumer never
// loses ownership through simple inactivity.
//
// If the lease expires before a terminal transition, the janitor's
// CleanExpired pass appends the object to the tail of the queue.
//
// # State Machine
//
// A Claim follows this lifecycle:
//
//	Claimed -> Claimed   (extend succeeds)
//	Claimed -> Released  (release succeeds)
//	Claimed -> Requeued  (requeue succeeds)
//	Claimed -> Expired    (any transition fails due to a stale session)
//
// Released, Requeued and Expired are terminal: once reached, no further
// transition is admitted and the Claim's state stream completes.
//
// # Retry Policy
//
// Every store call a Claim makes runs inside an infinite retry loop with a
// fixed back-off on transport-level errors; a definite boolean result from
// the store (including a session-mismatch false) always breaks the loop.
// opool does not apply exponential backoff to this retry — the lease TTL,
// not the retry interval, is what bounds recovery time for a stuck
// consumer.
//
// # Interfaces
//
// opool defines the following primary interfaces:
//
//	Queuer    — enqueue objects, tagged or untagged, optionally delayed
//	Claimer   — claim, extend, release and requeue objects
//	Cleaner   — reclaim expired leases and promote delay-matured objects
//	Notifier  — subscribe to the pool's has-queued notification channel
//
// Store composes all four. These interfaces allow store backends to be
// plugged in without coupling pool, claim or dispatch logic to a specific
// database.
//
// # Concurrency Model
//
// Each Claim serializes its own transitions through a per-claim mutex: at
// most one in-flight transition at a time, with later callers waiting on
// the first. Each dispatcher serializes its claim RPCs through a
// single-slot gate (internal.Gate) rather than a queue — a tick that
// arrives while a claim call is already in flight is dropped, not
// buffered, which prevents a thundering herd from a single store
// notification.
//
// Shutdown stops new ticks immediately. A dispatcher stops its loop when
// its last subscriber unsubscribes, and a Janitor's Stop waits, up to its
// timeout, for its ticking task to exit; neither waits for a claim or
// clean call already in flight. The shutdown function returned by
// Bootstrap waits a bounded time for handlers to finish the claims they
// hold.
//
// # Storage Expectations
//
// Implementations of Store must ensure atomic multi-key transitions,
// durable persistence of lease and delay TTLs, and FIFO ordering of
// P:queue / P:claimed as described in the package-level key model
// documented in store/redisstore.
//
// # Summary
//
// opool provides a minimal yet structured foundation for building
// distributed background processing systems with explicit claim
// lifecycle control, lease-based recovery and pluggable storage backends.
package opool
