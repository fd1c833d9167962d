package opool

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// retryInterval is the fixed back-off between store-call attempts made on
// behalf of a Claim, per spec.md §4.3: "Every script call from a Claim
// runs inside an infinite retry loop with fixed 1.5-second back-off on any
// transport-level error".
const retryInterval = 1500 * time.Millisecond

// DefaultClaimTTL is the design constant claimTTLSeconds from spec.md
// §4.3: the lease duration a Claim requests and re-requests on every
// extension. Auto-extension fires at half of it.
const DefaultClaimTTL = 30 * time.Second

// ClaimActions is the pool-scoped subset of claim-lifecycle transitions a
// Claim needs to perform its own Extend/Release/Requeue. Unlike Claimer
// (store.go), whose methods are parameterized by pool because a Store
// backs every pool at once, ClaimActions methods are already scoped to a
// single pool — Client satisfies it directly, since Client itself is
// bound to one pool name for its whole lifetime.
type ClaimActions interface {
	Extend(ctx context.Context, objects []string, session string, expiration time.Duration) (bool, error)
	Release(ctx context.Context, objects []string, session string) (bool, error)
	Requeue(ctx context.Context, objects []string, session string, delay time.Duration) (bool, error)
}

// Claim encapsulates one leased batch of objects: the objects themselves,
// the opaque session that authorizes acting on them, and the back-
// reference to the pool they were claimed from.
//
// A Claim auto-extends its own lease at roughly ttl/2 while it remains in
// the Claimed state, so a consumer that is still working does not need to
// heartbeat manually. Release, Requeue and Extend may still be called
// explicitly at any time; all transitions are serialized through the
// Claim's own mutex, so a second caller simply awaits the first rather
// than racing it.
//
// Claim values are not safe to copy; always use a pointer.
type Claim struct {
	mu      sync.Mutex
	state   ClaimState
	objects []string
	session string
	pool    string
	claimer ClaimActions
	ttl     time.Duration
	halfTTL time.Duration
	log     *slog.Logger

	timer  *time.Timer
	states chan ClaimState
	done   chan struct{}
}

// NewClaim constructs a Claim in the Claimed state and arms its
// auto-extension timer. It is the building block both ObjectPool.Claim
// (one Claim per object) and ObjectPool.ClaimTagged (one Claim for the
// whole batch) are built from.
func NewClaim(pool string, claimer ClaimActions, objects []string, session string, ttl time.Duration, log *slog.Logger) *Claim {
	c := &Claim{
		state:   Claimed,
		objects: objects,
		session: session,
		pool:    pool,
		claimer: claimer,
		ttl:     ttl,
		halfTTL: ttl / 2,
		log:     log,
		states:  make(chan ClaimState, 4),
		done:    make(chan struct{}),
	}
	c.states <- Claimed
	c.armLocked()
	return c
}

// Objects returns the objects held by this claim, in claim order.
func (c *Claim) Objects() []string {
	return c.objects
}

// Session returns the opaque session id backing this claim.
func (c *Claim) Session() string {
	return c.session
}

// Pool returns the name of the pool this claim was drawn from.
func (c *Claim) Pool() string {
	return c.pool
}

// State returns the current state of the claim.
func (c *Claim) State() ClaimState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// States returns a channel that receives the states the claim enters,
// including re-entries into Claimed after a successful extend. States are
// sent without blocking into a buffer of four; a state entered while the
// buffer is full is not delivered. The channel is closed once the claim
// reaches a terminal state.
func (c *Claim) States() <-chan ClaimState {
	return c.states
}

// Done returns a channel that is closed once the claim reaches a terminal
// state. It is the single-shot counterpart of States, convenient for
// select statements that only care about completion.
func (c *Claim) Done() <-chan struct{} {
	return c.done
}

// setLocked updates the state, publishes it on the state stream and, if
// the new state is terminal, closes the state stream and the done
// channel. Callers must hold c.mu.
func (c *Claim) setLocked(s ClaimState) {
	c.state = s
	select {
	case c.states <- s:
	default:
	}
	if s.Terminal() {
		close(c.states)
		close(c.done)
	}
}

// armLocked (re-)schedules the auto-extension timer for halfTTL from now.
// Callers must hold c.mu.
func (c *Claim) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.halfTTL <= 0 {
		return
	}
	c.timer = time.AfterFunc(c.halfTTL, c.autoExtend)
}

// disarmLocked cancels any pending auto-extension. Callers must hold c.mu.
func (c *Claim) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Claim) autoExtend() {
	if ok := c.Extend(context.Background(), c.ttl); !ok {
		c.log.Warn("auto-extend failed, claim expired", "pool", c.pool, "session", c.session)
	}
}

// Extend resets the lease on every object in the claim to ttl and re-arms
// the auto-extension timer. It returns false without contacting the store
// if the claim is not currently in the Claimed state, and false (after
// exhausting the retry loop's only exit condition: a definite answer)
// if the store reports the session no longer owns the objects — in which
// case the claim transitions to Expired.
func (c *Claim) Extend(ctx context.Context, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Claimed {
		return false
	}
	c.setLocked(Extending)
	ok := c.retry(ctx, func() (bool, error) {
		return c.claimer.Extend(ctx, c.objects, c.session, ttl)
	})
	if ok {
		c.setLocked(Claimed)
		c.armLocked()
	} else {
		c.disarmLocked()
		c.setLocked(Expired)
	}
	return ok
}

// Release permanently removes every object in the claim from the pool.
// It returns false without contacting the store if the claim is not
// currently in the Claimed state.
func (c *Claim) Release(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Claimed {
		return false
	}
	c.setLocked(Releasing)
	c.disarmLocked()
	ok := c.retry(ctx, func() (bool, error) {
		return c.claimer.Release(ctx, c.objects, c.session)
	})
	if ok {
		c.setLocked(Released)
	} else {
		c.setLocked(Expired)
	}
	return ok
}

// Requeue returns every object in the claim to the pool. If delay is
// greater than zero the objects re-enter the pool via the delayed queue
// instead of becoming immediately claimable. It returns false without
// contacting the store if the claim is not currently in the Claimed
// state.
func (c *Claim) Requeue(ctx context.Context, delay time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Claimed {
		return false
	}
	c.setLocked(Requeuing)
	c.disarmLocked()
	ok := c.retry(ctx, func() (bool, error) {
		return c.claimer.Requeue(ctx, c.objects, c.session, delay)
	})
	if ok {
		c.setLocked(Requeued)
	} else {
		c.setLocked(Expired)
	}
	return ok
}

// retry runs fn until it returns a nil error, sleeping retryInterval
// between attempts on a non-nil (transport-level) error. A nil error
// always ends the loop, whatever boolean fn produced — a false result
// with a nil error is a definite "session mismatch" answer, not a
// transient failure, and must not be retried.
//
// The loop deliberately does not select on ctx.Done(): per spec.md §5,
// the retry loop is uninterruptible by design. A caller that wants to
// abandon a pending call must stop waiting on it (invoke it from a
// goroutine it is willing to leak); the retry itself keeps going until
// the store gives a definite answer, which is safe because every
// operation here is idempotent against a stale session.
func (c *Claim) retry(ctx context.Context, fn func() (bool, error)) bool {
	for {
		ok, err := fn()
		if err == nil {
			return ok
		}
		c.log.Error("store call failed, retrying", "pool", c.pool, "session", c.session, "err", err)
		time.Sleep(retryInterval)
	}
}
