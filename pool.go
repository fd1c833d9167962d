package opool

import (
	"context"
	"log/slog"
	"time"
)

// ObjectPool is the high-level entry point producers and consumers use
// for a single named pool. It wraps a Client with the policy spec.md §4.4
// assigns to the Object Pool component: a fixed claim TTL, Claim
// construction, and the dispatch/janitor machinery built on top of the
// raw store operations.
type ObjectPool struct {
	name   string
	client *Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewObjectPool builds an ObjectPool named name, backed by store, using
// ttl as the lease duration every claim requests and every extension
// re-requests. A ttl of zero selects DefaultClaimTTL.
func NewObjectPool(name string, store Store, ttl time.Duration, log *slog.Logger) *ObjectPool {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &ObjectPool{
		name:   name,
		client: NewClient(store, name, log),
		ttl:    ttl,
		log:    log,
	}
}

// Name returns the pool's name.
func (p *ObjectPool) Name() string {
	return p.name
}

// TTL returns the lease duration this pool's claims use.
func (p *ObjectPool) TTL() time.Duration {
	return p.ttl
}

// Queue enqueues objects with no tags and no delay.
func (p *ObjectPool) Queue(ctx context.Context, objects ...string) ([]string, error) {
	return p.client.Queue(ctx, objects...)
}

// QueueTagged enqueues objects carrying tags, optionally delayed.
func (p *ObjectPool) QueueTagged(ctx context.Context, tags map[string]string, objects []string, delay time.Duration) ([]string, error) {
	return p.client.QueueTagged(ctx, tags, objects, delay)
}

// Claim claims up to maxCount objects and wraps each one in its own
// Claim: every returned object is independently releasable, requeueable
// and extensible, even though all of them share the single session the
// underlying store call produced. Objects are returned in claim order.
func (p *ObjectPool) Claim(ctx context.Context, maxCount int) ([]*Claim, error) {
	session, objects, err := p.client.Claim(ctx, maxCount, p.ttl, "")
	if err != nil {
		return nil, err
	}
	claims := make([]*Claim, len(objects))
	for i, o := range objects {
		claims[i] = NewClaim(p.name, p.client, []string{o}, session, p.ttl, p.log)
	}
	return claims, nil
}

// ClaimTagged claims up to maxCount objects sharing tag's value and
// wraps the whole batch in a single Claim: the batch shares one session
// and therefore one terminal fate. If the store returns no objects,
// ClaimTagged returns (nil, nil) rather than an empty Claim.
func (p *ObjectPool) ClaimTagged(ctx context.Context, tag string, maxCount int) (*Claim, error) {
	session, objects, err := p.client.Claim(ctx, maxCount, p.ttl, tag)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}
	return NewClaim(p.name, p.client, objects, session, p.ttl, p.log), nil
}

// Clean invokes CleanExpired then CleanDelayed on this pool and returns
// the union of both result sets. It is the non-streaming counterpart the
// Janitor drives on a timer.
func (p *ObjectPool) Clean(ctx context.Context) ([]string, error) {
	return p.client.Clean(ctx)
}

// HasQueued returns the pool's shared has-queued notification stream; see
// Client.HasQueued.
func (p *ObjectPool) HasQueued() (<-chan struct{}, func()) {
	return p.client.HasQueued()
}
