package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/autoscale"
	"github.com/BaSui01/batchflow/batcher"
	"github.com/BaSui01/batchflow/dispatch"
	"github.com/BaSui01/batchflow/internal/metrics"
	"github.com/BaSui01/batchflow/pool"
	"github.com/BaSui01/batchflow/sink"
	"github.com/BaSui01/batchflow/types"
	"github.com/BaSui01/batchflow/window"
)

// Option 配置编排器的可选能力。
type Option func(*options)

type options struct {
	logger      *zap.Logger
	provisioner pool.Provisioner
	observer    sink.Observer
	eventHook   func(ctx context.Context, event autoscale.Event)
	collector   *metrics.Collector
}

// WithLogger 注入结构化日志器,默认为 zap.NewNop()。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProvisioner 指定 worker 供给器,覆盖内核参数。可失败的供给器
// 是 ScaleOperationFailed 的来源,控制器会在下个周期重试。
func WithProvisioner(p pool.Provisioner) Option {
	return func(o *options) { o.provisioner = p }
}

// WithObserver 把每个评估周期的观测样本发布到指定观测汇。
func WithObserver(observer sink.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithEventHook 注册扩缩容评估事件钩子,常见用途是写入事件日志。
func WithEventHook(hook func(ctx context.Context, event autoscale.Event)) Option {
	return func(o *options) { o.eventHook = hook }
}

// WithCollector 接入 Prometheus 指标收集器,覆盖提交、组批、执行与
// 伸缩四个环节。
func WithCollector(collector *metrics.Collector) Option {
	return func(o *options) { o.collector = collector }
}

// Orchestrator 是管线的组合根:持有全部子系统并对外提供 Submit 入口。
// 所有方法并发安全。
type Orchestrator struct {
	spec   types.WorkflowSpec
	logger *zap.Logger

	window     *window.MetricsWindow
	pool       *pool.WorkerPool
	dispatcher *dispatch.Dispatcher
	batcher    *batcher.Batcher
	controller *autoscale.Controller
	collector  *metrics.Collector

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	submitted atomic.Int64
	rejected  atomic.Int64
}

// New 校验规格、装配子系统并把池预热到 MinReplicas。kernel 与
// WithProvisioner 二选一;两者都给时以供给器为准。预热失败时
// 已建的 worker 会被拆除,错误原样返回。
func New(spec types.WorkflowSpec, kernel pool.Kernel, opts ...Option) (*Orchestrator, error) {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	provisioner := o.provisioner
	if provisioner == nil {
		if kernel == nil {
			return nil, fmt.Errorf("either a kernel or a provisioner is required")
		}
		provisioner = pool.NewStaticProvisioner(kernel)
	}

	win := window.New(spec.WindowSize)

	p, err := pool.New(pool.Config{
		MinReplicas: spec.MinReplicas,
		MaxReplicas: spec.MaxReplicas,
	}, provisioner, o.logger)
	if err != nil {
		return nil, err
	}

	var dispatchOpts []dispatch.Option
	if o.collector != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithExecutionHook(
			func(batch *types.Batch, executed int, elapsed time.Duration, execErr error) {
				o.collector.RecordExecution(executed, elapsed, execErr)
			},
		))
	}
	d, err := dispatch.New(dispatch.Config{BacklogSize: spec.BacklogSize}, p, win, o.logger, dispatchOpts...)
	if err != nil {
		return nil, err
	}

	var batcherOpts []batcher.Option
	if o.collector != nil {
		batcherOpts = append(batcherOpts, batcher.WithFlushHook(
			func(batch *types.Batch, trigger string) {
				o.collector.RecordFlush(trigger, batch.Size())
			},
		))
	}
	b, err := batcher.New(batcher.Config{
		MaxBatchSize:  spec.MaxBatchSize,
		FlushInterval: spec.FlushInterval,
	}, d.Dispatch, o.logger, batcherOpts...)
	if err != nil {
		return nil, err
	}

	policy, err := autoscale.NewHysteresisPolicy(spec.TargetLatency)
	if err != nil {
		return nil, err
	}

	orc := &Orchestrator{
		spec:       spec,
		logger:     o.logger.With(zap.String("component", "orchestrator")),
		window:     win,
		pool:       p,
		dispatcher: d,
		batcher:    b,
		collector:  o.collector,
	}

	var ctrlOpts []autoscale.Option
	if o.observer != nil {
		ctrlOpts = append(ctrlOpts, autoscale.WithObserver(o.observer))
	}
	ctrlOpts = append(ctrlOpts, autoscale.WithEventHook(orc.onEvaluation(o.eventHook)))

	ctrl, err := autoscale.New(autoscale.Config{
		EvaluateInterval: spec.EvaluateInterval,
		Min:              spec.MinReplicas,
		Max:              spec.MaxReplicas,
	}, policy, p, win, o.logger, ctrlOpts...)
	if err != nil {
		return nil, err
	}
	orc.controller = ctrl

	// 预热到下限:接受第一个批次之前必须有可用 worker
	if err := p.ScaleTo(context.Background(), spec.MinReplicas); err != nil {
		b.Close()
		_ = d.Close(context.Background())
		_ = p.Close(context.Background())
		return nil, err
	}

	orc.logger.Info("pipeline assembled",
		zap.Int("min_replicas", spec.MinReplicas),
		zap.Int("max_replicas", spec.MaxReplicas),
		zap.Int("max_batch_size", spec.MaxBatchSize),
		zap.Duration("flush_interval", spec.FlushInterval),
		zap.Duration("target_latency", spec.TargetLatency),
	)
	return orc, nil
}

// onEvaluation 组合指标上报与调用方钩子。
func (o *Orchestrator) onEvaluation(userHook func(ctx context.Context, event autoscale.Event)) func(ctx context.Context, event autoscale.Event) {
	return func(ctx context.Context, event autoscale.Event) {
		if o.collector != nil {
			o.collector.RecordEvaluation(
				event.Decision.Direction.String(),
				event.Applied,
				event.AvgLatency,
				event.Replicas,
				o.pool.IdleCount(),
			)
		}
		if userHook != nil {
			userHook(ctx, event)
		}
	}
}

// Submit 提交一个载荷并立即返回其 Future。调用路径永不等待组批、
// 派发或执行;背压以同步错误报告:
//
//   - QueueFull    — 待处理缓冲已满,重试请退避
//   - Overloaded   — 派发积压已满,扩缩容已到顶
//   - ShuttingDown — Close 之后的提交
func (o *Orchestrator) Submit(ctx context.Context, payload any) (*types.Future, error) {
	ctx, span := otel.Tracer("batchflow/orchestrator").Start(ctx, "orchestrator.Submit")
	defer span.End()

	if o.closed.Load() {
		return nil, types.NewShuttingDownError()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 积压满载时在接纳前同步拒绝,不让注定失败的工作项占缓冲位
	if o.dispatcher.Saturated() {
		o.rejected.Add(1)
		if o.collector != nil {
			o.collector.RecordRejection(string(types.ErrOverloaded))
		}
		span.SetAttributes(attribute.String("reject_reason", string(types.ErrOverloaded)))
		return nil, types.NewOverloadedError(o.spec.BacklogSize)
	}

	item := types.NewWorkItem(payload)
	future := types.NewFuture(item)

	if err := o.batcher.Enqueue(item, future); err != nil {
		o.rejected.Add(1)
		if o.collector != nil {
			o.collector.RecordRejection(string(types.GetErrorCode(err)))
		}
		span.SetAttributes(attribute.String("reject_reason", string(types.GetErrorCode(err))))
		return nil, err
	}

	o.submitted.Add(1)
	if o.collector != nil {
		o.collector.RecordSubmission()
	}
	span.SetAttributes(attribute.String("item_id", item.ID))
	return future, nil
}

// SubmitWait 提交并阻塞等待结果,等价于 Submit 后紧跟 Future.Wait。
func (o *Orchestrator) SubmitWait(ctx context.Context, payload any) (*types.Result, error) {
	future, err := o.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	return future.Wait(ctx)
}

// Start 启动扩缩容评估回路。提交面不依赖 Start:不启动控制器的
// 管线以固定的 MinReplicas 副本数运行。
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.controller.Start(ctx)
}

// EvaluateNow 立即执行一次扩缩容评估并返回决策。
func (o *Orchestrator) EvaluateNow(ctx context.Context) autoscale.Decision {
	return o.controller.EvaluateOnce(ctx)
}

// Spec 返回归一化后的管线规格。
func (o *Orchestrator) Spec() types.WorkflowSpec {
	return o.spec
}

// Replicas 返回当前存活副本数。
func (o *Orchestrator) Replicas() int {
	return o.pool.Replicas()
}

// Workers 返回全部存活 worker 的即时快照。
func (o *Orchestrator) Workers() []pool.Info {
	return o.pool.Snapshot()
}

// Close 优雅停机:先关接收面冲洗余批,再排空派发积压等待在飞批次,
// 然后停控制回路,最后放倒 worker 池。完成后所有已接纳的 Future
// 均处于终态。幂等,重复调用返回首次的结果。
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		o.batcher.Close()

		var errs []error
		if err := o.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher close: %w", err))
		}

		o.controller.Stop()

		if err := o.pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pool close: %w", err))
		}

		o.closeErr = errors.Join(errs...)
		if o.closeErr == nil {
			o.logger.Info("pipeline closed")
		} else {
			o.logger.Warn("pipeline closed with errors", zap.Error(o.closeErr))
		}
	})
	return o.closeErr
}

// Stats 聚合各子系统的即时统计。
type Stats struct {
	Submitted int64           `json:"submitted"`
	Rejected  int64           `json:"rejected"`
	Batcher   batcher.Stats   `json:"batcher"`
	Dispatch  dispatch.Stats  `json:"dispatch"`
	Pool      pool.Stats      `json:"pool"`
	Autoscale autoscale.Stats `json:"autoscale"`
	Window    window.Stats    `json:"window"`
}

// Stats 返回管线统计快照。
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Submitted: o.submitted.Load(),
		Rejected:  o.rejected.Load(),
		Batcher:   o.batcher.Stats(),
		Dispatch:  o.dispatcher.Stats(),
		Pool:      o.pool.Stats(),
		Autoscale: o.controller.Stats(),
		Window:    o.window.Stats(),
	}
}
