package pool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerState is the lifecycle state of one worker replica.
type WorkerState int32

const (
	// WorkerIdle means the worker is live and available for acquisition.
	WorkerIdle WorkerState = iota
	// WorkerBusy means the worker is executing a batch.
	WorkerBusy
	// WorkerDraining means the worker was selected for removal while Busy.
	// It finishes its current batch and terminates on Release; it is never
	// acquired again.
	WorkerDraining
	// WorkerTerminated means the worker left the pool.
	WorkerTerminated
)

// String returns a human-readable state name.
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerDraining:
		return "draining"
	case WorkerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Worker represents one stateless compute replica. Workers are owned
// exclusively by the pool; state transitions happen under the pool's lock,
// the atomic holder only makes reads safe for snapshots.
type Worker struct {
	id        string
	kernel    Kernel
	state     atomic.Int32
	createdAt time.Time
	batches   atomic.Int64
}

func newWorker(kernel Kernel) *Worker {
	return &Worker{
		id:        uuid.NewString(),
		kernel:    kernel,
		createdAt: time.Now(),
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *Worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// Batches returns how many batches this worker has executed.
func (w *Worker) Batches() int64 {
	return w.batches.Load()
}

// Process executes one batch worth of payloads on the worker's kernel. The
// caller measures latency and owns result fan-out.
func (w *Worker) Process(ctx context.Context, payloads []any) ([]any, error) {
	w.batches.Add(1)
	return w.kernel.Process(ctx, payloads)
}

// Info is a point-in-time view of one worker, used by stats surfaces.
type Info struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Batches   int64     `json:"batches"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns a copy of the worker's observable fields.
func (w *Worker) Snapshot() Info {
	return Info{
		ID:        w.id,
		State:     w.State().String(),
		Batches:   w.batches.Load(),
		CreatedAt: w.createdAt,
	}
}
