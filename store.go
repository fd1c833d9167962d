package opool

import (
	"context"
	"time"
)

// Queuer defines the write-side entry point of a pool's store.
//
// It corresponds to spec operation queueTagged (spec.md §4.1.1); an
// untagged Queue is the tags-empty, delay-zero special case.
type Queuer interface {

	// QueueTagged adds objects to pool's tracked set.
	//
	// tags, if non-empty, is attached to every one of objects and is used
	// to build/maintain the pool's tagged-queue indices.
	//
	// delay, if greater than zero, routes the new objects into the
	// delayed queue instead of the immediately-claimable queue; they
	// become eligible only after a later Cleaner.CleanDelayed promotes
	// them.
	//
	// Objects already tracked by the pool (present in P:all) are silently
	// dropped from the input; QueueTagged returns only the objects that
	// were newly added, in first-occurrence order. Calling QueueTagged
	// with objects that are all already tracked returns an empty, non-nil
	// slice and leaves the store unchanged.
	//
	// QueueTagged must add all of objects atomically: concurrent callers
	// never observe a partially-applied batch.
	QueueTagged(ctx context.Context, pool string, tags map[string]string, objects []string, delay time.Duration) ([]string, error)
}

// Claimer defines the claim lifecycle operations of a pool's store.
//
// Claimer corresponds to spec operations claim, extend, release and
// requeue (spec.md §4.1.2-§4.1.5).
type Claimer interface {

	// Claim pops up to maxCount objects from the head of the pool's
	// queue and leases them under session.
	//
	// session is generated by the caller (the store stores it verbatim
	// and never interprets its contents, per spec.md §4.1.2) rather than
	// by the store itself; Client.Claim generates one fresh session per
	// call via newSession.
	//
	// If tag is non-empty and maxCount is at least 2, Claim uses the
	// tagged claim path: the head object is popped, its tag value is
	// looked up, and up to maxCount-1 further objects sharing that tag
	// value are popped from the tagged queue. If the head object carries
	// no value for tag, the result is the single head object.
	//
	// maxCount == 0 returns an empty, non-nil objects slice without
	// touching the queue.
	//
	// session is the capability required to later Extend, Release or
	// Requeue the returned objects.
	Claim(ctx context.Context, pool string, maxCount int, expiration time.Duration, tag string, session string) (objects []string, err error)

	// Extend resets the lease TTL of every one of objects to expiration,
	// provided session still owns all of them.
	//
	// Extend returns false, with no mutation, if any object's session key
	// is absent or does not match session. This is not an error: it is
	// the normal signal that the lease has already expired or was never
	// held.
	Extend(ctx context.Context, pool string, objects []string, session string, expiration time.Duration) (bool, error)

	// Release permanently removes objects from the pool, provided
	// session still owns all of them.
	//
	// Release returns false, with no mutation, on any session mismatch.
	Release(ctx context.Context, pool string, objects []string, session string) (bool, error)

	// Requeue returns objects to the pool for future reclaim, provided
	// session still owns all of them.
	//
	// If delay is greater than zero, the objects are routed to the
	// delayed queue instead of becoming immediately claimable.
	//
	// Requeue returns false, with no mutation, on any session mismatch.
	Requeue(ctx context.Context, pool string, objects []string, session string, delay time.Duration) (bool, error)
}

// Cleaner reclaims expired leases and promotes delay-matured objects.
//
// Cleaner corresponds to spec operations cleanExpired and cleanDelayed
// (spec.md §4.1.6-§4.1.7). It is invoked periodically by a Janitor; it is
// never invoked from the normal claim/release/requeue path.
type Cleaner interface {

	// CleanExpired walks the claimed list from the head and returns every
	// object whose lease has expired to the queue, relying on the
	// invariant that P:claimed is ordered by lease expiry (spec.md §3.5):
	// once a head entry's session key is found to still exist, every
	// later entry is assumed live too, and the walk stops.
	//
	// CleanExpired returns the objects it moved, in the order they were
	// found expired.
	CleanExpired(ctx context.Context, pool string) ([]string, error)

	// CleanDelayed performs the symmetric walk over the delayed queue,
	// promoting objects whose delay key has expired into the claimable
	// queue (and rebuilding their tagged-queue membership).
	CleanDelayed(ctx context.Context, pool string) ([]string, error)
}

// Notification is the payload delivered on a pool's has-queued channel.
// It carries no information beyond its own occurrence: any message means
// "work may be available", per spec.md §3's P:queued pub/sub row.
type Notification struct{}

// Notifier exposes a pool's has-queued notification channel.
//
// Subscribe opens one dedicated store-level subscription (a duplicated
// connection, in store backends where pub/sub precludes ordinary commands
// on the same connection) per call; it does not itself de-duplicate
// concurrent callers. The ref-counted sharing described in spec.md §4.2 —
// a second consumer must not open a second store subscription, and the
// connection is released once the last consumer unsubscribes — is a Pool
// Client concern, implemented by Client.HasQueued via internal.Topic,
// not a Store implementation concern.
type Notifier interface {

	// Subscribe opens the pool's has-queued stream. The returned channel
	// receives a value each time the store publishes on P:queued for
	// pool. Calling the returned cancel function tears down this
	// subscription.
	Subscribe(ctx context.Context, pool string) (ch <-chan Notification, cancel func(), err error)
}

// Store is the full contract a key-value-store backend must satisfy to
// back an ObjectPool. It is the authoritative boundary described in
// spec.md §4.1: every method here must be implemented as a single atomic
// operation against the backing store, with no cross-operation
// transactions assumed.
type Store interface {
	Queuer
	Claimer
	Cleaner
	Notifier
}
