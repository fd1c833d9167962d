package opool

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opoolio/opool/internal"
)

// Client is a thin, stateless façade over a Store, scoped to a single
// pool name. It invokes the store operations directly (spec.md §4.2) and
// owns the one piece of state the façade is allowed to keep: the shared,
// ref-counted hasQueued broadcast built on top of Store.Subscribe.
//
// Client does not interpret results beyond what the Store contract
// already guarantees; ObjectPool builds Claim values and dispatch streams
// on top of it.
type Client struct {
	store Store
	pool  string
	log   *slog.Logger
	topic *internal.Topic[struct{}]
}

// NewClient builds a Client bound to pool, backed by store.
func NewClient(store Store, pool string, log *slog.Logger) *Client {
	c := &Client{
		store: store,
		pool:  pool,
		log:   log,
	}
	c.topic = internal.NewTopic[struct{}](1, c.startSubscription)
	return c
}

// Pool returns the name this client is scoped to.
func (c *Client) Pool() string {
	return c.pool
}

func (c *Client) startSubscription() func() {
	ctx, cancel := context.WithCancel(context.Background())
	ch, storeCancel, err := c.store.Subscribe(ctx, c.pool)
	if err != nil {
		c.log.Error("hasQueued subscribe failed", "pool", c.pool, "err", err)
		cancel()
		return func() {}
	}
	go func() {
		for range ch {
			c.topic.Publish(struct{}{})
		}
	}()
	return func() {
		storeCancel()
		cancel()
	}
}

// HasQueued subscribes to the pool's has-queued stream. The underlying
// store subscription is opened lazily on the first subscriber and shared
// by every subsequent one; it is torn down once the last subscriber
// calls the returned cancel function.
func (c *Client) HasQueued() (<-chan struct{}, func()) {
	return c.topic.Subscribe()
}

// Queue enqueues objects with no tags and no delay. It is the common-case
// shorthand for QueueTagged(ctx, nil, objects, 0).
func (c *Client) Queue(ctx context.Context, objects ...string) ([]string, error) {
	return c.QueueTagged(ctx, nil, objects, 0)
}

// QueueTagged forwards to the store's QueueTagged for this client's pool.
// It returns ErrEmptyObject without contacting the store if any of
// objects is the empty string.
func (c *Client) QueueTagged(ctx context.Context, tags map[string]string, objects []string, delay time.Duration) ([]string, error) {
	for _, o := range objects {
		if o == "" {
			return nil, ErrEmptyObject
		}
	}
	return c.store.QueueTagged(ctx, c.pool, tags, objects, delay)
}

// Claim generates a fresh opaque session id and forwards to the store's
// Claim for this client's pool.
func (c *Client) Claim(ctx context.Context, maxCount int, expiration time.Duration, tag string) (string, []string, error) {
	session := newSession()
	objects, err := c.store.Claim(ctx, c.pool, maxCount, expiration, tag, session)
	if err != nil {
		return "", nil, err
	}
	return session, objects, nil
}

// Extend forwards to the store's Extend for this client's pool.
func (c *Client) Extend(ctx context.Context, objects []string, session string, expiration time.Duration) (bool, error) {
	return c.store.Extend(ctx, c.pool, objects, session, expiration)
}

// Release forwards to the store's Release for this client's pool.
func (c *Client) Release(ctx context.Context, objects []string, session string) (bool, error) {
	return c.store.Release(ctx, c.pool, objects, session)
}

// Requeue forwards to the store's Requeue for this client's pool.
func (c *Client) Requeue(ctx context.Context, objects []string, session string, delay time.Duration) (bool, error) {
	return c.store.Requeue(ctx, c.pool, objects, session, delay)
}

// Clean invokes CleanExpired then CleanDelayed and returns the union of
// both result sets.
func (c *Client) Clean(ctx context.Context) ([]string, error) {
	expired, err := c.store.CleanExpired(ctx, c.pool)
	if err != nil {
		return nil, err
	}
	delayed, err := c.store.CleanDelayed(ctx, c.pool)
	if err != nil {
		return expired, err
	}
	return append(expired, delayed...), nil
}

// newSession generates a fresh opaque session identifier. Store
// implementations store it verbatim; opool never interprets its
// contents.
func newSession() string {
	return uuid.NewString()
}
