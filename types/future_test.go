package types

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFuture_ResolveOnce(t *testing.T) {
	t.Parallel()

	f := NewFuture(NewWorkItem("payload"))
	if f.State() != FuturePending {
		t.Fatalf("expected pending, got %s", f.State())
	}

	if !f.BeginDispatch() {
		t.Fatalf("expected dispatch claim to succeed")
	}
	if !f.Resolve(&Result{ItemID: f.Item().ID, Output: "ok"}) {
		t.Fatalf("expected resolve to succeed")
	}
	if f.Resolve(&Result{Output: "again"}) {
		t.Fatalf("second resolve must be a no-op")
	}
	if f.Fail(NewShuttingDownError()) {
		t.Fatalf("fail after resolve must be a no-op")
	}

	res, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "ok" {
		t.Fatalf("expected first outcome to win, got %v", res.Output)
	}
}

func TestFuture_CancelBeforeDispatch(t *testing.T) {
	t.Parallel()

	f := NewFuture(NewWorkItem(nil))
	if !f.Cancel() {
		t.Fatalf("expected cancel of pending future to succeed")
	}
	if !f.Cancelled() {
		t.Fatalf("expected cancelled state")
	}
	if f.BeginDispatch() {
		t.Fatalf("dispatcher must not claim a cancelled future")
	}

	_, err := f.Wait(context.Background())
	if !IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestFuture_CancelAfterDispatchNotHonored(t *testing.T) {
	t.Parallel()

	f := NewFuture(NewWorkItem(nil))
	if !f.BeginDispatch() {
		t.Fatalf("expected claim to succeed")
	}
	if f.Cancel() {
		t.Fatalf("cancel after dispatch must be refused")
	}
	if f.State() != FutureDispatching {
		t.Fatalf("expected dispatching, got %s", f.State())
	}

	f.Resolve(&Result{Output: 42})
	res, err := f.Wait(context.Background())
	if err != nil || res.Output != 42 {
		t.Fatalf("expected execution outcome, got %v / %v", res, err)
	}
}

func TestFuture_WaitContextTimeout(t *testing.T) {
	t.Parallel()

	f := NewFuture(NewWorkItem(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// 超时只影响本次 Wait,future 本身仍可交付
	f.Fail(NewOverloadedError(1))
	_, err = f.Wait(context.Background())
	if !IsOverloaded(err) {
		t.Fatalf("expected overloaded after late wait, got %v", err)
	}
}

func TestFuture_ConcurrentResolvers(t *testing.T) {
	t.Parallel()

	f := NewFuture(NewWorkItem(nil))
	var wins atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if f.Resolve(&Result{Output: n}) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winning resolve, got %d", wins.Load())
	}
	if _, _, ok := f.Outcome(); !ok {
		t.Fatalf("expected terminal outcome")
	}
}
