package opool_test

import (
	"context"
	"testing"
	"time"

	"github.com/opoolio/opool"
)

func TestQueueDedup(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())

	added, err := pool.Queue(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 {
		t.Fatalf("expected [a], got %v", added)
	}

	added, err = pool.Queue(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 0 {
		t.Fatalf("expected re-queuing an already-tracked object to return [], got %v", added)
	}
}

func TestQueueEmptyArgs(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())

	added, err := pool.Queue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 0 {
		t.Fatalf("expected [], got %v", added)
	}
}

func TestQueueRejectsEmptyObject(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())

	if _, err := pool.Queue(ctx, ""); err != opool.ErrEmptyObject {
		t.Fatalf("expected ErrEmptyObject, got %v", err)
	}
}

func TestDelayMaturation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())

	delay := 30 * time.Millisecond
	if _, err := pool.QueueTagged(ctx, nil, []string{"a"}, delay); err != nil {
		t.Fatal(err)
	}
	if len(store.queue["P"]) != 0 {
		t.Fatalf("expected P:queue empty before maturation, got %v", store.queue["P"])
	}
	if len(store.delayedQ["P"]) != 1 {
		t.Fatalf("expected P:delayed-queue = [a], got %v", store.delayedQ["P"])
	}

	time.Sleep(delay + 20*time.Millisecond)

	promoted, err := pool.Clean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(promoted) != 1 || promoted[0] != "a" {
		t.Fatalf("expected cleanDelayed to promote [a], got %v", promoted)
	}
	if len(store.queue["P"]) != 1 || store.queue["P"][0] != "a" {
		t.Fatalf("expected P:queue = [a], got %v", store.queue["P"])
	}
}

func TestHasQueuedSharesOneSubscription(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	pool := opool.NewObjectPool("P", store, time.Minute, discardLogger())

	ch1, cancel1 := pool.HasQueued()
	ch2, cancel2 := pool.HasQueued()
	defer cancel1()
	defer cancel2()

	if n := len(store.subs["P"]); n != 1 {
		t.Fatalf("expected exactly one underlying subscription, got %d", n)
	}

	if _, err := pool.Queue(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	for _, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for has-queued notification")
		}
	}

	cancel1()
	cancel2()
	if n := len(store.subs["P"]); n != 0 {
		t.Fatalf("expected the underlying subscription to be released, got %d remaining", n)
	}
}
