package opool_test

import (
	"context"
	"testing"
	"time"

	"github.com/opoolio/opool"
)

func TestBootstrapDefaultRequeuePolicy(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := opool.NewRegistry()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())
	reg.Add(pool)

	if _, err := pool.Queue(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	handled := make(chan *opool.Claim, 4)
	descriptors := []opool.ProcessorDescriptor{
		{
			Pool:          "P",
			MaxClaimCount: 1,
			Handler: func(ctx context.Context, claim *opool.Claim) {
				handled <- claim
				// deliberately does not call Release or Requeue
			},
		},
	}

	shutdown := opool.Bootstrap(ctx, reg, descriptors, discardLogger())
	defer shutdown()

	select {
	case claim := <-handled:
		select {
		case <-claim.Done():
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for the default requeue to complete the claim")
		}
		if claim.State() != opool.Requeued {
			t.Fatalf("expected the claim to be auto-requeued, got state %v", claim.State())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the processor to receive a claim")
	}
}

func TestBootstrapSkipsUnknownPool(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := opool.NewRegistry()
	_ = store

	descriptors := []opool.ProcessorDescriptor{
		{Pool: "missing", MaxClaimCount: 1, Handler: func(context.Context, *opool.Claim) {}},
	}

	shutdown := opool.Bootstrap(ctx, reg, descriptors, discardLogger())
	shutdown()
}

func TestBootstrapHandlerExplicitRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := opool.NewRegistry()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())
	reg.Add(pool)

	if _, err := pool.Queue(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	descriptors := []opool.ProcessorDescriptor{
		{
			Pool:          "P",
			MaxClaimCount: 1,
			Handler: func(ctx context.Context, claim *opool.Claim) {
				claim.Release(ctx)
				close(done)
			},
		},
	}

	shutdown := opool.Bootstrap(ctx, reg, descriptors, discardLogger())
	defer shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the handler to run")
	}
}
