package types

import (
	"context"
	"sync/atomic"
)

// FutureState is the lifecycle state of a Future.
type FutureState int32

const (
	// FuturePending means the item is buffered and not yet claimed by the
	// dispatcher. Cancel succeeds only in this state.
	FuturePending FutureState = iota
	// FutureDispatching means the dispatcher has claimed the item for an
	// in-flight execution. Cancellation is no longer honored.
	FutureDispatching
	// FutureResolved means a result was delivered.
	FutureResolved
	// FutureFailed means a typed error was delivered.
	FutureFailed
	// FutureCancelled means the caller cancelled before dispatch.
	FutureCancelled
)

// String returns a human-readable state name.
func (s FutureState) String() string {
	switch s {
	case FuturePending:
		return "pending"
	case FutureDispatching:
		return "dispatching"
	case FutureResolved:
		return "resolved"
	case FutureFailed:
		return "failed"
	case FutureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Future is the caller-held handle to one work item's eventual outcome. It is
// fulfilled exactly once: later Resolve/Fail/Cancel calls are no-ops. All
// methods are safe for concurrent use.
type Future struct {
	item  *WorkItem
	state atomic.Int32
	done  chan struct{}

	// written once by the transition winner before done is closed
	result *Result
	err    error
}

// NewFuture creates a pending future for the given item.
func NewFuture(item *WorkItem) *Future {
	return &Future{
		item: item,
		done: make(chan struct{}),
	}
}

// Item returns the work item this future tracks.
func (f *Future) Item() *WorkItem {
	return f.item
}

// State returns the current lifecycle state.
func (f *Future) State() FutureState {
	return FutureState(f.state.Load())
}

// Done returns a channel closed when the future reaches a terminal state.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Cancel attempts to cancel before dispatch. It returns true if the future
// transitioned to Cancelled; false if the dispatcher already claimed the item
// or a result was already delivered. A cancelled item is skipped at dispatch
// time but keeps its slot in the batch, so sibling items are unaffected.
func (f *Future) Cancel() bool {
	if !f.state.CompareAndSwap(int32(FuturePending), int32(FutureCancelled)) {
		return false
	}
	f.err = NewCancelledError(f.item.ID)
	close(f.done)
	return true
}

// Cancelled reports whether the future was cancelled before dispatch.
func (f *Future) Cancelled() bool {
	return f.State() == FutureCancelled
}

// BeginDispatch claims the item for execution, blocking further cancellation.
// It returns false if the future is cancelled or already terminal, in which
// case the dispatcher skips the item. Called by the dispatcher only.
func (f *Future) BeginDispatch() bool {
	return f.state.CompareAndSwap(int32(FuturePending), int32(FutureDispatching))
}

// Resolve delivers the result. It returns false if the future was already
// terminal, in which case the result is discarded.
func (f *Future) Resolve(result *Result) bool {
	if !f.transition(FutureResolved) {
		return false
	}
	f.result = result
	close(f.done)
	return true
}

// Fail delivers a typed error. It returns false if the future was already
// terminal.
func (f *Future) Fail(err error) bool {
	if !f.transition(FutureFailed) {
		return false
	}
	f.err = err
	close(f.done)
	return true
}

// transition moves Pending or Dispatching to the given terminal state.
func (f *Future) transition(to FutureState) bool {
	for {
		s := f.state.Load()
		if s != int32(FuturePending) && s != int32(FutureDispatching) {
			return false
		}
		if f.state.CompareAndSwap(s, int32(to)) {
			return true
		}
	}
}

// Wait blocks until the future is terminal or ctx is done. It returns the
// result, or the typed error the future failed with, or ctx.Err() if the
// context won. The future itself is unaffected by a context timeout; a later
// Wait can still observe the outcome.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the delivered result or error without blocking. ok is false
// while the future is still pending or dispatching.
func (f *Future) Outcome() (result *Result, err error, ok bool) {
	select {
	case <-f.done:
		return f.result, f.err, true
	default:
		return nil, nil, false
	}
}
