package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/types"
)

// Config bounds the pool. Scaling decisions are clamped into
// [MinReplicas, MaxReplicas] no matter what the caller asks for.
type Config struct {
	MinReplicas int `json:"min_replicas" yaml:"min_replicas"`
	MaxReplicas int `json:"max_replicas" yaml:"max_replicas"`
}

// WorkerPool owns the live worker set and provides acquire/release/scale
// operations. Two locks are involved: mu guards the worker slice and states,
// scaleMu serializes whole scale operations so concurrent ScaleTo calls
// cannot interleave their provision loops. Neither lock is ever held across
// Kernel.Process, Provision, or Teardown.
type WorkerPool struct {
	cfg         Config
	provisioner Provisioner
	logger      *zap.Logger

	scaleMu sync.Mutex
	mu      sync.Mutex
	workers []*Worker
	cursor  int
	closed  bool
	drained chan struct{}

	notify chan struct{}

	acquired      atomic.Int64
	released      atomic.Int64
	provisioned   atomic.Int64
	terminated    atomic.Int64
	scaleFailures atomic.Int64
}

// New creates an empty pool. The orchestrator pre-scales it to MinReplicas
// before accepting work.
func New(cfg Config, provisioner Provisioner, logger *zap.Logger) (*WorkerPool, error) {
	if provisioner == nil {
		return nil, fmt.Errorf("provisioner cannot be nil")
	}
	if cfg.MinReplicas < 1 {
		return nil, fmt.Errorf("min replicas must be >= 1, got %d", cfg.MinReplicas)
	}
	if cfg.MaxReplicas < cfg.MinReplicas {
		return nil, fmt.Errorf("max replicas %d must be >= min replicas %d", cfg.MaxReplicas, cfg.MinReplicas)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		cfg:         cfg,
		provisioner: provisioner,
		logger:      logger.With(zap.String("component", "worker_pool")),
		drained:     make(chan struct{}),
		notify:      make(chan struct{}, 1),
	}, nil
}

// TryAcquireIdleWorker returns an idle worker marked Busy, or false when no
// worker is idle. Selection is round-robin over the stable worker order: a
// cursor advances past each acquisition, so repeated acquisitions cycle
// through idle replicas deterministically.
func (p *WorkerPool) TryAcquireIdleWorker() (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.workers)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		w := p.workers[idx]
		if w.State() == WorkerIdle {
			w.setState(WorkerBusy)
			p.cursor = (idx + 1) % n
			p.acquired.Add(1)
			return w, true
		}
	}
	return nil, false
}

// Release returns a worker after its batch completes. A Busy worker becomes
// Idle again; a Draining worker terminates and leaves the pool, completing
// the scale-down that selected it.
func (p *WorkerPool) Release(w *Worker) {
	p.mu.Lock()
	var teardown *Worker
	switch w.State() {
	case WorkerBusy:
		w.setState(WorkerIdle)
		p.released.Add(1)
	case WorkerDraining:
		w.setState(WorkerTerminated)
		p.removeLocked(w)
		p.released.Add(1)
		p.terminated.Add(1)
		teardown = w
	default:
		p.logger.Warn("release of worker in unexpected state",
			zap.String("worker_id", w.ID()),
			zap.String("state", w.State().String()),
		)
	}
	p.mu.Unlock()

	if teardown != nil {
		p.teardownWorker(teardown)
		p.logger.Info("drained worker terminated", zap.String("worker_id", teardown.ID()))
	}
	p.wake()
}

// ScaleTo grows or shrinks the pool toward desired, clamped into the
// configured bounds. Scale-up provisions workers one at a time; a failure
// keeps the partial progress and returns a retryable scale error. Scale-down
// terminates idle workers first and marks busy workers Draining for the
// remainder; a busy worker is never interrupted.
func (p *WorkerPool) ScaleTo(ctx context.Context, desired int) error {
	p.scaleMu.Lock()
	defer p.scaleMu.Unlock()

	if desired < p.cfg.MinReplicas {
		desired = p.cfg.MinReplicas
	}
	if desired > p.cfg.MaxReplicas {
		desired = p.cfg.MaxReplicas
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return types.NewShuttingDownError()
	}
	live := len(p.workers)
	p.mu.Unlock()

	switch {
	case desired > live:
		return p.scaleUp(ctx, desired-live)
	case desired < live:
		p.scaleDown(live - desired)
	}
	return nil
}

func (p *WorkerPool) scaleUp(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		w := newWorker(nil)
		kernel, err := p.provisioner.Provision(ctx, w.ID())
		if err != nil {
			p.scaleFailures.Add(1)
			p.logger.Warn("worker provisioning failed",
				zap.Int("provisioned", i),
				zap.Int("requested", count),
				zap.Error(err),
			)
			return types.NewScaleOperationError("provision worker", err)
		}
		w.kernel = kernel

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.teardownWorker(w)
			return types.NewShuttingDownError()
		}
		p.workers = append(p.workers, w)
		p.mu.Unlock()

		p.provisioned.Add(1)
		p.logger.Info("worker provisioned", zap.String("worker_id", w.ID()))
		p.wake()
	}
	return nil
}

func (p *WorkerPool) scaleDown(count int) {
	p.mu.Lock()

	// drains already in flight count toward the reduction target
	inFlight := 0
	for _, w := range p.workers {
		if w.State() == WorkerDraining {
			inFlight++
		}
	}
	count -= inFlight

	var torn []*Worker
	for _, w := range p.snapshotLocked() {
		if count <= 0 {
			break
		}
		if w.State() == WorkerIdle {
			w.setState(WorkerTerminated)
			p.removeLocked(w)
			p.terminated.Add(1)
			torn = append(torn, w)
			count--
		}
	}
	drainMarked := 0
	for _, w := range p.workers {
		if count <= 0 {
			break
		}
		if w.State() == WorkerBusy {
			w.setState(WorkerDraining)
			drainMarked++
			count--
		}
	}
	p.mu.Unlock()

	for _, w := range torn {
		p.teardownWorker(w)
		p.logger.Info("idle worker terminated", zap.String("worker_id", w.ID()))
	}
	if drainMarked > 0 {
		p.logger.Info("busy workers marked draining", zap.Int("count", drainMarked))
	}
}

// Replicas returns the live worker count. Draining workers stay live until
// they terminate on Release.
func (p *WorkerPool) Replicas() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IdleCount returns how many workers are currently idle.
func (p *WorkerPool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := 0
	for _, w := range p.workers {
		if w.State() == WorkerIdle {
			idle++
		}
	}
	return idle
}

// Notify returns a channel tripped whenever a worker becomes available
// (release or scale-up). Consumers park on it instead of polling.
func (p *WorkerPool) Notify() <-chan struct{} {
	return p.notify
}

// Snapshot returns a point-in-time view of all live workers.
func (p *WorkerPool) Snapshot() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Info, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Snapshot())
	}
	return out
}

// Stats summarizes pool state and lifetime counters.
type Stats struct {
	Replicas      int   `json:"replicas"`
	Idle          int   `json:"idle"`
	Busy          int   `json:"busy"`
	Draining      int   `json:"draining"`
	Acquired      int64 `json:"acquired"`
	Released      int64 `json:"released"`
	Provisioned   int64 `json:"provisioned"`
	Terminated    int64 `json:"terminated"`
	ScaleFailures int64 `json:"scale_failures"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() Stats {
	p.mu.Lock()
	st := Stats{Replicas: len(p.workers)}
	for _, w := range p.workers {
		switch w.State() {
		case WorkerIdle:
			st.Idle++
		case WorkerBusy:
			st.Busy++
		case WorkerDraining:
			st.Draining++
		}
	}
	p.mu.Unlock()

	st.Acquired = p.acquired.Load()
	st.Released = p.released.Load()
	st.Provisioned = p.provisioned.Load()
	st.Terminated = p.terminated.Load()
	st.ScaleFailures = p.scaleFailures.Load()
	return st
}

// Close terminates all workers. Idle workers go down immediately; busy ones
// drain first. Close returns once the pool is empty or ctx expires.
func (p *WorkerPool) Close(ctx context.Context) error {
	p.scaleMu.Lock()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.scaleMu.Unlock()
		select {
		case <-p.drained:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.closed = true

	var torn []*Worker
	for _, w := range p.snapshotLocked() {
		switch w.State() {
		case WorkerIdle:
			w.setState(WorkerTerminated)
			p.removeLocked(w)
			p.terminated.Add(1)
			torn = append(torn, w)
		case WorkerBusy:
			w.setState(WorkerDraining)
		}
	}
	if len(p.workers) == 0 {
		p.closeDrainedLocked()
	}
	remaining := len(p.workers)
	p.mu.Unlock()
	p.scaleMu.Unlock()

	for _, w := range torn {
		p.teardownWorker(w)
	}
	p.wake()
	p.logger.Info("pool closing", zap.Int("draining", remaining))

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) snapshotLocked() []*Worker {
	out := make([]*Worker, len(p.workers))
	copy(out, p.workers)
	return out
}

func (p *WorkerPool) removeLocked(w *Worker) {
	for i, cur := range p.workers {
		if cur == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			if p.cursor > i {
				p.cursor--
			}
			if len(p.workers) > 0 {
				p.cursor %= len(p.workers)
			} else {
				p.cursor = 0
			}
			break
		}
	}
	if p.closed && len(p.workers) == 0 {
		p.closeDrainedLocked()
	}
}

func (p *WorkerPool) closeDrainedLocked() {
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}

func (p *WorkerPool) teardownWorker(w *Worker) {
	if err := p.provisioner.Teardown(context.Background(), w.ID(), w.kernel); err != nil {
		p.logger.Warn("worker teardown failed",
			zap.String("worker_id", w.ID()),
			zap.Error(err),
		)
	}
}

func (p *WorkerPool) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
