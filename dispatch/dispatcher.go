// Package dispatch 将封板批次派发到空闲 worker 执行,并把执行延迟写入
// 滑动指标窗口。
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/pool"
	"github.com/BaSui01/batchflow/types"
	"github.com/BaSui01/batchflow/window"
)

// Config 配置派发行为。
type Config struct {
	// BacklogSize 是待执行批次的积压上限,满载后 Dispatch 同步拒绝。
	BacklogSize int `json:"backlog_size" yaml:"backlog_size"`
}

// Option 配置 dispatcher 的可选能力。
type Option func(*Dispatcher)

// WithExecutionHook 注册执行钩子,每次批次执行结束后在执行协程上调用。
// executed 是实际下发的工作项数(已剔除取消项),err 为内核失败原因。
func WithExecutionHook(hook func(batch *types.Batch, executed int, elapsed time.Duration, err error)) Option {
	return func(d *Dispatcher) {
		d.execHook = hook
	}
}

// Dispatcher 异步消费批次积压:单一 drain 协程为每个批次抢占一个空闲
// worker,随后在独立协程中执行,使并行度自然贴合存活 worker 数。
// worker 全忙时 drain 协程停在池的唤醒通道上,积压随之回压到 Dispatch。
type Dispatcher struct {
	cfg      Config
	pool     *pool.WorkerPool
	window   *window.MetricsWindow
	execHook func(batch *types.Batch, executed int, elapsed time.Duration, err error)
	logger   *zap.Logger

	backlog chan *types.Batch
	stopCh  chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	execCtx    context.Context
	cancelExec context.CancelFunc

	// 计量
	dispatched atomic.Int64
	rejected   atomic.Int64
	executed   atomic.Int64
	failed     atomic.Int64
	breaches   atomic.Int64
	skipped    atomic.Int64
	inFlight   atomic.Int64
}

// New 创建并启动一个 dispatcher。
func New(cfg Config, p *pool.WorkerPool, win *window.MetricsWindow, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if cfg.BacklogSize < 1 {
		return nil, fmt.Errorf("backlog size must be >= 1, got %d", cfg.BacklogSize)
	}
	if p == nil {
		return nil, fmt.Errorf("worker pool cannot be nil")
	}
	if win == nil {
		return nil, fmt.Errorf("metrics window cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	execCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		pool:       p,
		window:     win,
		logger:     logger.With(zap.String("component", "dispatcher")),
		backlog:    make(chan *types.Batch, cfg.BacklogSize),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		execCtx:    execCtx,
		cancelExec: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.drainLoop()

	return d, nil
}

// Dispatch 将批次投入积压。积压满载时同步置败整批期货并返回 Overloaded;
// 关闭后返回 ShuttingDown。成功入队不代表执行成功,结果经由期货交付。
func (d *Dispatcher) Dispatch(batch *types.Batch) error {
	if d.closed.Load() {
		err := types.NewShuttingDownError()
		batch.FailAll(err)
		return err
	}

	select {
	case d.backlog <- batch:
		d.dispatched.Add(1)
		return nil
	default:
		d.rejected.Add(1)
		err := types.NewOverloadedError(cap(d.backlog))
		batch.FailAll(err)
		d.logger.Warn("batch rejected, backlog saturated",
			zap.String("batch_id", batch.ID),
			zap.Int("size", batch.Size()),
			zap.Int("backlog_cap", cap(d.backlog)),
		)
		return err
	}
}

// Saturated 报告积压是否已满。提交端可据此在接纳前同步拒绝,
// 而不是等到批次封板后才发现过载。
func (d *Dispatcher) Saturated() bool {
	return len(d.backlog) >= cap(d.backlog)
}

// drainLoop 逐批抢占 worker。抢不到时停在池的唤醒通道上,
// 让积压通道自然填满并回压。
func (d *Dispatcher) drainLoop() {
	defer d.wg.Done()

	for {
		select {
		case batch := <-d.backlog:
			d.run(batch)

		case <-d.stopCh:
			for {
				select {
				case batch := <-d.backlog:
					d.run(batch)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) run(batch *types.Batch) {
	w := d.acquire()
	if w == nil {
		batch.FailAll(types.NewShuttingDownError())
		return
	}
	d.wg.Add(1)
	go d.execute(w, batch)
}

// acquire 自旋在轮询与唤醒之间,直到抢到空闲 worker 或执行上下文被取消。
func (d *Dispatcher) acquire() *pool.Worker {
	for {
		if w, ok := d.pool.TryAcquireIdleWorker(); ok {
			return w
		}
		select {
		case <-d.pool.Notify():
		case <-d.execCtx.Done():
			return nil
		}
	}
}

// execute 在独立协程中运行单个批次,worker 在所有路径上都会归还。
func (d *Dispatcher) execute(w *pool.Worker, batch *types.Batch) {
	defer d.wg.Done()
	defer d.pool.Release(w)

	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	// 下发前最后的取消点:已取消的期货跳过执行,序号映射保持一致
	items := make([]*types.WorkItem, 0, len(batch.Items))
	futures := make([]*types.Future, 0, len(batch.Futures))
	for i, f := range batch.Futures {
		if f.BeginDispatch() {
			items = append(items, batch.Items[i])
			futures = append(futures, f)
		} else {
			d.skipped.Add(1)
		}
	}
	if len(items) == 0 {
		// 整批都在排队期间被取消,不占用内核也不产生延迟样本
		return
	}

	payloads := make([]any, len(items))
	for i, item := range items {
		payloads[i] = item.Payload
	}

	execCtx, span := otel.Tracer("batchflow/dispatch").Start(d.execCtx, "dispatch.execute",
		trace.WithAttributes(
			attribute.String("batch_id", batch.ID),
			attribute.String("worker_id", w.ID()),
			attribute.Int("batch_size", len(items)),
		),
	)

	start := time.Now()
	outputs, err := w.Process(execCtx, payloads)
	elapsed := time.Since(start)
	span.End()

	// 失败的执行同样消耗了墙钟时间,一并计入窗口供扩缩容决策
	d.window.Record(elapsed)

	if d.execHook != nil {
		d.execHook(batch, len(items), elapsed, err)
	}

	if err != nil {
		failure := types.NewWorkerExecutionError(w.ID(), err)
		for _, f := range futures {
			f.Fail(failure)
		}
		d.failed.Add(1)
		d.logger.Warn("batch execution failed",
			zap.String("batch_id", batch.ID),
			zap.String("worker_id", w.ID()),
			zap.Int("size", len(items)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}

	if len(outputs) != len(payloads) {
		breach := types.NewKernelContractError(len(payloads), len(outputs))
		for _, f := range futures {
			f.Fail(breach)
		}
		d.breaches.Add(1)
		d.logger.Error("kernel output count mismatch",
			zap.String("batch_id", batch.ID),
			zap.String("worker_id", w.ID()),
			zap.Int("want", len(payloads)),
			zap.Int("got", len(outputs)),
		)
		return
	}

	for i, f := range futures {
		f.Resolve(&types.Result{
			ItemID:  items[i].ID,
			Output:  outputs[i],
			Latency: elapsed,
		})
	}
	d.executed.Add(1)
	d.logger.Debug("batch executed",
		zap.String("batch_id", batch.ID),
		zap.String("worker_id", w.ID()),
		zap.Int("size", len(items)),
		zap.Duration("elapsed", elapsed),
	)
}

// Close 优雅停机:排空已入队批次,等待在飞执行完成。超时后取消
// 执行上下文并返回 ctx 错误。幂等。
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.closed.Swap(true) {
		close(d.stopCh)
		go func() {
			d.wg.Wait()
			for {
				select {
				case batch := <-d.backlog:
					batch.FailAll(types.NewShuttingDownError())
				default:
					close(d.done)
					return
				}
			}
		}()
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancelExec()
		return ctx.Err()
	}
}

// Stats 返回派发统计。
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched:       d.dispatched.Load(),
		Rejected:         d.rejected.Load(),
		Executed:         d.executed.Load(),
		Failed:           d.failed.Load(),
		ContractBreaches: d.breaches.Load(),
		SkippedItems:     d.skipped.Load(),
		InFlight:         d.inFlight.Load(),
		Backlog:          len(d.backlog),
	}
}

// Stats 包含派发计数。
type Stats struct {
	Dispatched       int64 `json:"dispatched"`
	Rejected         int64 `json:"rejected"`
	Executed         int64 `json:"executed"`
	Failed           int64 `json:"failed"`
	ContractBreaches int64 `json:"contract_breaches"`
	SkippedItems     int64 `json:"skipped_items"`
	InFlight         int64 `json:"in_flight"`
	Backlog          int   `json:"backlog"`
}
