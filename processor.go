package opool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opoolio/opool/internal"
)

// ProcessorDescriptor is the registration surface spec.md §6 describes
// for wiring a user-defined handler to a registered pool. It is the
// host-container boundary: the host owns building descriptors and
// handlers, Bootstrap only consumes them.
type ProcessorDescriptor struct {
	// Pool must match a pool already registered in the Registry passed to
	// Bootstrap.
	Pool string

	// MaxClaimCount is the concurrent claim cap (ClaimStreamConfig's
	// MaxClaimedCount, or TaggedClaimStreamConfig's, depending on Tag).
	MaxClaimCount int

	// Tag, if non-empty, selects the tagged dispatch path.
	Tag string
	// MaxObjectPerClaim applies only when Tag is non-empty.
	MaxObjectPerClaim int

	// Queue, if non-nil, is re-queued before every claim attempt.
	Queue *QueueSeed

	// Handler is invoked once per emitted Claim. If it returns without
	// having called Release or Requeue on the Claim itself, Bootstrap
	// requeues it on the handler's behalf (spec.md §6's default
	// "keep the work available" policy).
	Handler func(ctx context.Context, claim *Claim)
}

// runningProcessor tracks one descriptor's live dispatch subscription so
// Shutdown can tear it down.
type runningProcessor struct {
	unsubscribe func()
}

// Bootstrap scans descriptors, looks up each one's pool in registry, and
// starts its dispatch stream and handler loop. A descriptor naming a pool
// the registry does not have is logged as a warning and skipped — it
// never aborts bootstrap for the other descriptors (spec.md §7's
// "registry miss at startup" policy).
//
// Bootstrap also starts a RegistryJanitor over registry (per-pool
// interval ttl/3), so every registered pool, present or future, is cleaned.
//
// The returned Shutdown function stops that janitor, cancels every
// started subscription and waits (up to shutdownDrainTimeout) for their
// handler loops to finish
// processing whatever claim they were already holding. ctx governs the
// claim RPCs Bootstrap's handler loops make; it does not itself stop the
// loops (Shutdown does).
func Bootstrap(ctx context.Context, registry *Registry, descriptors []ProcessorDescriptor, log *slog.Logger) (shutdown func()) {
	var running []runningProcessor
	var wg sync.WaitGroup

	janitor := NewRegistryJanitor(registry, JanitorConfig{}, log)
	if err := janitor.Start(ctx); err != nil {
		log.Error("registry janitor start failed", "err", err)
	}

	for _, desc := range descriptors {
		pool, ok := registry.Get(desc.Pool)
		if !ok {
			log.Warn("processor refers to unknown pool, skipping", "pool", desc.Pool)
			continue
		}

		var dispatcher *Dispatcher
		if desc.Tag != "" {
			dispatcher = pool.DispatchTagged(TaggedClaimStreamConfig{
				Tag:               desc.Tag,
				MaxObjectPerClaim: desc.MaxObjectPerClaim,
				MaxClaimedCount:   desc.MaxClaimCount,
				Queue:             desc.Queue,
			})
		} else {
			dispatcher = pool.Dispatch(ClaimStreamConfig{
				MaxClaimedCount: desc.MaxClaimCount,
				Queue:           desc.Queue,
			})
		}

		claims, unsubscribe := dispatcher.Subscribe()
		running = append(running, runningProcessor{unsubscribe: unsubscribe})
		wg.Add(1)
		go func(desc ProcessorDescriptor, claims <-chan *Claim) {
			defer wg.Done()
			runProcessor(ctx, desc, claims, log)
		}(desc, claims)
	}

	return func() {
		if err := janitor.Stop(defaultJanitorStopTimeout); err != nil {
			log.Warn("registry janitor stop failed", "err", err)
		}
		for _, r := range running {
			r.unsubscribe()
		}
		select {
		case <-internal.WrapWaitGroup(&wg):
		case <-time.After(shutdownDrainTimeout):
			log.Warn("shutdown timed out waiting for processor handlers to drain")
		}
	}
}

// shutdownDrainTimeout bounds how long Bootstrap's shutdown waits for
// in-flight handlers to finish after their dispatch subscriptions are
// torn down.
const shutdownDrainTimeout = 30 * time.Second

func runProcessor(ctx context.Context, desc ProcessorDescriptor, claims <-chan *Claim, log *slog.Logger) {
	for claim := range claims {
		invokeHandler(ctx, desc, claim, log)
	}
}

func invokeHandler(ctx context.Context, desc ProcessorDescriptor, claim *Claim, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("processor handler panicked", "pool", desc.Pool, "panic", r)
		}
		if claim.State() == Claimed {
			claim.Requeue(ctx, 0)
		}
	}()
	desc.Handler(ctx, claim)
}
