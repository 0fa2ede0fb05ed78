package autoscale

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/sink"
	"github.com/BaSui01/batchflow/window"
)

// Scaler 是控制器的执行面:读取当前副本数并推进到期望值。
// ScaleTo 失败不会终止控制回路,下一个周期会重新评估重试。
type Scaler interface {
	ScaleTo(ctx context.Context, desired int) error
	Replicas() int
}

// Event 是一次评估周期的完整记录,交给事件钩子做持久化或审计。
type Event struct {
	Timestamp   time.Time     `json:"timestamp"`
	AvgLatency  time.Duration `json:"avg_latency"`
	SampleCount int           `json:"sample_count"`
	Replicas    int           `json:"replicas"`
	Decision    Decision      `json:"decision"`

	// Applied 表示扩缩动作是否成功落地,Hold 周期恒为 false
	Applied bool `json:"applied"`

	// Err 是 ScaleTo 的失败原因,成功或 Hold 时为 nil
	Err error `json:"-"`
}

// Config 配置控制回路。
type Config struct {
	// EvaluateInterval 是评估周期
	EvaluateInterval time.Duration `json:"evaluate_interval" yaml:"evaluate_interval"`

	// Min 与 Max 是副本数边界
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Option 配置控制器的可选能力。
type Option func(*Controller)

// WithObserver 把每个评估周期的观测样本发布到指定观测汇。
func WithObserver(observer sink.Observer) Option {
	return func(c *Controller) {
		c.observer = observer
	}
}

// WithEventHook 注册评估事件钩子。钩子在控制协程上同步执行,
// 耗时操作应自行异步化。
func WithEventHook(hook func(ctx context.Context, event Event)) Option {
	return func(c *Controller) {
		c.hook = hook
	}
}

// Controller 驱动评估回路:按周期读窗口、问策略、推执行面,
// 并把每个周期的结果交给观测汇与事件钩子。
type Controller struct {
	cfg      Config
	policy   Policy
	scaler   Scaler
	window   *window.MetricsWindow
	logger   *zap.Logger
	observer sink.Observer
	hook     func(ctx context.Context, event Event)

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// 计量
	evaluations atomic.Int64
	scaleUps    atomic.Int64
	scaleDowns  atomic.Int64
	holds       atomic.Int64
	failures    atomic.Int64
}

// New 创建控制器。
func New(cfg Config, policy Policy, scaler Scaler, win *window.MetricsWindow, logger *zap.Logger, opts ...Option) (*Controller, error) {
	if cfg.EvaluateInterval <= 0 {
		return nil, fmt.Errorf("evaluate interval must be positive")
	}
	if cfg.Min < 1 {
		return nil, fmt.Errorf("min replicas must be >= 1, got %d", cfg.Min)
	}
	if cfg.Max < cfg.Min {
		return nil, fmt.Errorf("max replicas %d must be >= min replicas %d", cfg.Max, cfg.Min)
	}
	if policy == nil {
		return nil, fmt.Errorf("policy cannot be nil")
	}
	if scaler == nil {
		return nil, fmt.Errorf("scaler cannot be nil")
	}
	if win == nil {
		return nil, fmt.Errorf("metrics window cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		cfg:    cfg,
		policy: policy,
		scaler: scaler,
		window: win,
		logger: logger.With(zap.String("component", "autoscaler")),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start 启动评估回路。重复启动返回错误。
func (c *Controller) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return fmt.Errorf("controller already started")
	}

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("autoscaler started",
		zap.Duration("evaluate_interval", c.cfg.EvaluateInterval),
		zap.Int("min", c.cfg.Min),
		zap.Int("max", c.cfg.Max),
	)
	return nil
}

func (c *Controller) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.EvaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.EvaluateOnce(ctx)
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// Stop 停止评估回路并等待控制协程退出。幂等。
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

// EvaluateOnce 执行一个完整的评估周期并返回决策。除周期回路外,
// 管理接口也可调用它立即触发一次评估。
func (c *Controller) EvaluateOnce(ctx context.Context) Decision {
	c.evaluations.Add(1)

	avg, _ := c.window.Average()
	dc := DecisionContext{
		AvgLatency:  avg,
		SampleCount: c.window.Len(),
		Replicas:    c.scaler.Replicas(),
		Min:         c.cfg.Min,
		Max:         c.cfg.Max,
	}
	decision := c.policy.Evaluate(dc)

	var (
		applied  bool
		scaleErr error
	)
	if decision.Direction == Hold {
		c.holds.Add(1)
	} else {
		scaleErr = c.scaler.ScaleTo(ctx, decision.Desired)
		if scaleErr != nil {
			// 失败只记录,副本数没变,下个周期会得出同样的决策再试
			c.failures.Add(1)
			c.logger.Warn("scale operation failed, will retry next cycle",
				zap.Int("replicas", dc.Replicas),
				zap.Int("desired", decision.Desired),
				zap.String("direction", decision.Direction.String()),
				zap.Error(scaleErr),
			)
		} else {
			applied = true
			if decision.Direction == Up {
				c.scaleUps.Add(1)
			} else {
				c.scaleDowns.Add(1)
			}
			c.logger.Info("replica count adjusted",
				zap.Int("from", dc.Replicas),
				zap.Int("to", decision.Desired),
				zap.Duration("avg_latency", dc.AvgLatency),
				zap.Int("sample_count", dc.SampleCount),
				zap.String("reason", decision.Reason),
			)
		}
	}

	c.publish(ctx, dc, decision)

	if c.hook != nil {
		c.hook(ctx, Event{
			Timestamp:   time.Now(),
			AvgLatency:  dc.AvgLatency,
			SampleCount: dc.SampleCount,
			Replicas:    dc.Replicas,
			Decision:    decision,
			Applied:     applied,
			Err:         scaleErr,
		})
	}

	return decision
}

func (c *Controller) publish(ctx context.Context, dc DecisionContext, decision Decision) {
	if c.observer == nil {
		return
	}
	sample := sink.Sample{
		Timestamp:   time.Now(),
		AvgLatency:  dc.AvgLatency,
		SampleCount: dc.SampleCount,
		Replicas:    dc.Replicas,
		Desired:     decision.Desired,
		Direction:   decision.Direction.String(),
		Reason:      decision.Reason,
	}
	if err := c.observer.Publish(ctx, sample); err != nil {
		c.logger.Warn("observation publish failed", zap.Error(err))
	}
}

// Stats 返回控制回路统计。
func (c *Controller) Stats() Stats {
	return Stats{
		Evaluations:   c.evaluations.Load(),
		ScaleUps:      c.scaleUps.Load(),
		ScaleDowns:    c.scaleDowns.Load(),
		Holds:         c.holds.Load(),
		ScaleFailures: c.failures.Load(),
	}
}

// Stats 包含控制回路计数。
type Stats struct {
	Evaluations   int64 `json:"evaluations"`
	ScaleUps      int64 `json:"scale_ups"`
	ScaleDowns    int64 `json:"scale_downs"`
	Holds         int64 `json:"holds"`
	ScaleFailures int64 `json:"scale_failures"`
}
