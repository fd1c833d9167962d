package opool

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opoolio/opool/internal"
	"golang.org/x/sync/errgroup"
)

// defaultJanitorStopTimeout bounds how long the registry janitor waits
// for each per-pool Janitor to finish an in-flight clean call during
// shutdown.
const defaultJanitorStopTimeout = 5 * time.Second

// Registry holds the set of ObjectPools known to a process.
//
// Per spec.md §9, the registry is the one true module-level state in this
// system; it is deliberately not a language-level global (no package-level
// singleton var). Callers construct one explicitly at container
// bootstrap with NewRegistry and pass it to whatever needs to look pools
// up or run their janitors.
type Registry struct {
	mu    sync.Mutex
	pools map[string]*ObjectPool
	subs  []chan *ObjectPool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		pools: make(map[string]*ObjectPool),
	}
}

// Add registers pools. Registering a pool whose name is already present
// is a no-op for that pool (idempotent registration); the previously
// registered instance is kept.
func (r *Registry) Add(pools ...*ObjectPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pools {
		if _, exists := r.pools[p.Name()]; exists {
			continue
		}
		r.pools[p.Name()] = p
		for _, ch := range r.subs {
			ch <- p
		}
	}
}

// Get looks up a pool by name.
func (r *Registry) Get(name string) (*ObjectPool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[name]
	return p, ok
}

// Pools returns the names of every currently registered pool, sorted.
func (r *Registry) Pools() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.pools))
	for n := range r.pools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) snapshot() []*ObjectPool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]*ObjectPool, 0, len(r.pools))
	for _, p := range r.pools {
		ret = append(ret, p)
	}
	return ret
}

// subscribeAdds returns a channel that receives every pool registered
// after the call, plus a function to stop receiving them.
func (r *Registry) subscribeAdds() (<-chan *ObjectPool, func()) {
	ch := make(chan *ObjectPool, 16)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s == ch {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}
	return ch, cancel
}

// RegistryJanitor is the process-wide janitor: it merges the clean loop
// of every pool currently registered in a Registry and every pool
// registered in the future (spec.md §4.5), using one Janitor per pool.
//
// Subscribing — i.e. calling Start — once starts the janitor for every
// pool; there is no per-pool opt-out once a pool is registered.
type RegistryJanitor struct {
	lcBase
	reg    *Registry
	config JanitorConfig
	log    *slog.Logger

	mu        sync.Mutex
	running   map[string]*Janitor
	cancel    context.CancelFunc
	unsubAdds func()
}

// NewRegistryJanitor builds a RegistryJanitor over reg. config.Interval,
// if zero, is resolved per pool from that pool's own TTL (ttl/3).
func NewRegistryJanitor(reg *Registry, config JanitorConfig, log *slog.Logger) *RegistryJanitor {
	return &RegistryJanitor{
		reg:    reg,
		config: config,
		log:    log,
	}
}

func (rj *RegistryJanitor) startFor(ctx context.Context, pool *ObjectPool) {
	rj.mu.Lock()
	if _, ok := rj.running[pool.Name()]; ok {
		rj.mu.Unlock()
		return
	}
	jan := NewJanitor(pool, rj.config, rj.log)
	rj.running[pool.Name()] = jan
	rj.mu.Unlock()
	if err := jan.Start(ctx); err != nil {
		rj.log.Error("janitor start failed", "pool", pool.Name(), "err", err)
	}
}

// Start begins running a Janitor for every pool already registered in
// reg, and arms a listener that starts one for every pool registered
// afterward. Start returns ErrDoubleStarted if already started.
func (rj *RegistryJanitor) Start(ctx context.Context) error {
	if err := rj.tryStart(); err != nil {
		return err
	}
	ctx, rj.cancel = context.WithCancel(ctx)
	rj.running = make(map[string]*Janitor)
	for _, p := range rj.reg.snapshot() {
		rj.startFor(ctx, p)
	}
	adds, unsub := rj.reg.subscribeAdds()
	rj.unsubAdds = unsub
	go func() {
		for p := range adds {
			rj.startFor(ctx, p)
		}
	}()
	return nil
}

func (rj *RegistryJanitor) doStop() internal.DoneChan {
	rj.cancel()
	rj.unsubAdds()
	rj.mu.Lock()
	jans := make([]*Janitor, 0, len(rj.running))
	for _, j := range rj.running {
		jans = append(jans, j)
	}
	rj.mu.Unlock()
	done := make(internal.DoneChan)
	go func() {
		defer close(done)
		var g errgroup.Group
		for _, j := range jans {
			j := j
			g.Go(func() error {
				return j.Stop(defaultJanitorStopTimeout)
			})
		}
		if err := g.Wait(); err != nil {
			rj.log.Warn("janitor shutdown incomplete", "err", err)
		}
	}()
	return done
}

// Stop terminates every running per-pool janitor and stops listening for
// future registrations. Stop returns ErrDoubleStopped if not running.
func (rj *RegistryJanitor) Stop(timeout time.Duration) error {
	return rj.tryStop(timeout, rj.doStop)
}
