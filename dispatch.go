package opool

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opoolio/opool/internal"
)

// resignalInterval is the periodic re-tick the dispatch engine schedules
// after every real has-queued notification, bounding how long a missed
// pub/sub message can delay a claim attempt (spec.md §9).
const resignalInterval = 10 * time.Second

// QueueSeed describes objects to (re-)queue immediately before every
// claim attempt a Dispatcher makes — the "seed & claim" idiom for
// self-priming processors (spec.md §4.4.1).
type QueueSeed struct {
	Objects []string
	Tags    map[string]string
}

// ClaimStreamConfig configures an untagged dispatch stream ($claim).
type ClaimStreamConfig struct {
	// MaxClaimedCount bounds how many Claims may be concurrently
	// outstanding. Values <= 0 are treated as 1.
	MaxClaimedCount int
	Queue           *QueueSeed
}

// TaggedClaimStreamConfig configures a tagged dispatch stream
// ($claimTagged).
type TaggedClaimStreamConfig struct {
	Tag string
	// MaxObjectPerClaim bounds the size of each batch. Values <= 0 are
	// treated as 1.
	MaxObjectPerClaim int
	// MaxClaimedCount bounds how many batches may be concurrently
	// outstanding. Values <= 0 are treated as 1.
	MaxClaimedCount int
	Queue           *QueueSeed
}

// Dispatcher is the streaming half of an ObjectPool (spec.md §4.4.1): it
// turns has-queued notifications, a bootstrap tick and claim-completion
// feedback into a bounded, hot, shared stream of Claims.
//
// A Dispatcher does nothing until the first Subscribe call, which lazily
// starts its internal loop; the loop stops again once the last
// subscriber unsubscribes, mirroring ObjectPool.HasQueued.
type Dispatcher struct {
	pool            *ObjectPool
	maxClaimedCount int
	seed            *QueueSeed
	attempt         func(ctx context.Context, available int) ([]*Claim, error)
	log             *slog.Logger

	topic       *internal.Topic[*Claim]
	outstanding atomic.Int64
	gate        internal.Gate
	feedback    chan struct{}
}

func newDispatcher(pool *ObjectPool, maxClaimedCount int, seed *QueueSeed, log *slog.Logger) *Dispatcher {
	if maxClaimedCount <= 0 {
		maxClaimedCount = 1
	}
	d := &Dispatcher{
		pool:            pool,
		maxClaimedCount: maxClaimedCount,
		seed:            seed,
		log:             log,
	}
	d.topic = internal.NewTopic[*Claim](maxClaimedCount, d.startLoop)
	return d
}

// Dispatch builds the untagged dispatch stream for this pool.
func (p *ObjectPool) Dispatch(config ClaimStreamConfig) *Dispatcher {
	d := newDispatcher(p, config.MaxClaimedCount, config.Queue, p.log)
	d.attempt = func(ctx context.Context, available int) ([]*Claim, error) {
		return p.Claim(ctx, available)
	}
	return d
}

// DispatchTagged builds the tagged dispatch stream for this pool. Each
// emitted Claim is one batch of up to config.MaxObjectPerClaim objects
// sharing config.Tag's value; a batch counts as a single outstanding
// claim regardless of its object count.
func (p *ObjectPool) DispatchTagged(config TaggedClaimStreamConfig) *Dispatcher {
	maxObjects := config.MaxObjectPerClaim
	if maxObjects <= 0 {
		maxObjects = 1
	}
	d := newDispatcher(p, config.MaxClaimedCount, config.Queue, p.log)
	d.attempt = func(ctx context.Context, available int) ([]*Claim, error) {
		claim, err := p.ClaimTagged(ctx, config.Tag, maxObjects)
		if err != nil {
			return nil, err
		}
		if claim == nil {
			return nil, nil
		}
		return []*Claim{claim}, nil
	}
	return d
}

// Subscribe joins the dispatcher's shared Claim stream, lazily starting
// its engine loop if this is the first subscriber.
func (d *Dispatcher) Subscribe() (<-chan *Claim, func()) {
	return d.topic.Subscribe()
}

func (d *Dispatcher) startLoop() func() {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan struct{}, 1)
	emitTick := func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}

	hasQueuedCh, unsubHasQueued := d.pool.HasQueued()
	d.feedback = make(chan struct{}, 1)

	go func() {
		defer unsubHasQueued()

		resignal := time.NewTimer(resignalInterval)
		defer resignal.Stop()
		resetResignal := func() {
			if !resignal.Stop() {
				select {
				case <-resignal.C:
				default:
				}
			}
			resignal.Reset(resignalInterval)
		}

		emitTick() // bootstrap tick: one synthetic signal on subscription

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-hasQueuedCh:
				if !ok {
					hasQueuedCh = nil
					continue
				}
				emitTick()
				resetResignal()
			case <-resignal.C:
				emitTick()
				resetResignal()
			case <-d.feedback:
				emitTick()
			case <-ticks:
				d.onTick(ctx)
			}
		}
	}()

	return cancel
}

func (d *Dispatcher) onTick(ctx context.Context) {
	available := d.maxClaimedCount - int(d.outstanding.Load())
	if available <= 0 {
		return
	}
	d.gate.TryRun(func() {
		if d.seed != nil && len(d.seed.Objects) > 0 {
			if _, err := d.pool.QueueTagged(ctx, d.seed.Tags, d.seed.Objects, 0); err != nil {
				d.log.Error("dispatch seed queue failed", "pool", d.pool.Name(), "err", err)
			}
		}
		claims, err := d.attempt(ctx, available)
		if err != nil {
			d.log.Error("dispatch claim failed", "pool", d.pool.Name(), "err", err)
			return
		}
		for _, c := range claims {
			d.outstanding.Add(1)
			d.topic.Publish(c)
			go d.awaitCompletion(c)
		}
	})
}

func (d *Dispatcher) awaitCompletion(c *Claim) {
	<-c.Done()
	d.outstanding.Add(-1)
	select {
	case d.feedback <- struct{}{}:
	default:
	}
}
