// Package batcher 将提交的工作项流转换为离散批次,尺寸与时间双触发。
package batcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/types"
)

// FlushFunc 接收封板后的批次。调用发生在批组装完成之后,不持有任何
// batcher 内部状态;返回错误表示下游拒收,期货由下游负责置败。
type FlushFunc func(batch *types.Batch) error

// Config 配置批组装行为。
type Config struct {
	// MaxBatchSize 既是尺寸触发阈值,也是待处理缓冲的容量。
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size"`

	// FlushInterval 是时间触发:自当前开放批次的首个工作项到达起计时。
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// Option 配置 batcher 的可选能力。
type Option func(*Batcher)

// WithFlushHook 注册封板钩子,每次批次交付前在 drain 协程上同步调用,
// trigger 取值 size、interval 或 close。用于指标上报。
func WithFlushHook(hook func(batch *types.Batch, trigger string)) Option {
	return func(b *Batcher) {
		b.flushHook = hook
	}
}

// Batcher 累积工作项并按双触发规则封板批次。生产者通过 Enqueue 非阻塞
// 投递;单一 drain 协程负责组批、计时与交付,因此尺寸触发与时间触发
// 天然互斥,一个累积周期只会产生一次冲洗。
type Batcher struct {
	cfg       Config
	flush     FlushFunc
	flushHook func(batch *types.Batch, trigger string)
	logger    *zap.Logger

	queue  chan *entry
	stopCh chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	// 计量
	enqueued     atomic.Int64
	rejected     atomic.Int64
	batches      atomic.Int64
	sizeFlushes  atomic.Int64
	timerFlushes atomic.Int64
}

type entry struct {
	item   *types.WorkItem
	future *types.Future
}

// New 创建并启动一个 batcher。
func New(cfg Config, flush FlushFunc, logger *zap.Logger, opts ...Option) (*Batcher, error) {
	if cfg.MaxBatchSize < 1 {
		return nil, fmt.Errorf("max batch size must be >= 1, got %d", cfg.MaxBatchSize)
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive")
	}
	if flush == nil {
		return nil, fmt.Errorf("flush func cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Batcher{
		cfg:    cfg,
		flush:  flush,
		logger: logger.With(zap.String("component", "batcher")),
		queue:  make(chan *entry, cfg.MaxBatchSize),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.drainLoop()

	return b, nil
}

// Enqueue 非阻塞投递一个工作项及其期货。缓冲满时返回 QueueFull,
// 调用方应退避重试;关闭后返回 ShuttingDown。
func (b *Batcher) Enqueue(item *types.WorkItem, future *types.Future) error {
	if b.closed.Load() {
		return types.NewShuttingDownError()
	}

	select {
	case b.queue <- &entry{item: item, future: future}:
		b.enqueued.Add(1)
		return nil
	default:
		b.rejected.Add(1)
		return types.NewQueueFullError(cap(b.queue))
	}
}

// drainLoop 是唯一的组批协程:消费待处理缓冲,按首项武装计时器,
// 在尺寸或时间触发时封板交付。
func (b *Batcher) drainLoop() {
	defer b.wg.Done()

	var (
		items   []*types.WorkItem
		futures []*types.Future
	)

	timer := time.NewTimer(b.cfg.FlushInterval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	// disarm 吸掉未消费的到期信号,避免下一个批次被陈旧触发
	disarm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	seal := func() *types.Batch {
		batch := types.NewBatch(items, futures)
		items, futures = nil, nil
		b.batches.Add(1)
		return batch
	}

	for {
		select {
		case e := <-b.queue:
			if len(items) == 0 {
				// 首项到达,武装时间触发
				disarm()
				timer.Reset(b.cfg.FlushInterval)
			}
			items = append(items, e.item)
			futures = append(futures, e.future)

			if len(items) >= b.cfg.MaxBatchSize {
				b.sizeFlushes.Add(1)
				disarm()
				b.deliver(seal(), "size")
			}

		case <-timer.C:
			// 尺寸触发抢先时这里可能是空窗:不产出批次,等下一个首项重新武装
			if len(items) > 0 {
				b.timerFlushes.Add(1)
				b.deliver(seal(), "interval")
			}

		case <-b.stopCh:
			for {
				select {
				case e := <-b.queue:
					items = append(items, e.item)
					futures = append(futures, e.future)
					if len(items) >= b.cfg.MaxBatchSize {
						b.sizeFlushes.Add(1)
						b.deliver(seal(), "size")
					}
				default:
					if len(items) > 0 {
						b.deliver(seal(), "close")
					}
					return
				}
			}
		}
	}
}

func (b *Batcher) deliver(batch *types.Batch, trigger string) {
	if b.flushHook != nil {
		b.flushHook(batch, trigger)
	}
	b.logger.Debug("batch sealed",
		zap.String("batch_id", batch.ID),
		zap.Int("size", batch.Size()),
		zap.String("trigger", trigger),
	)
	if err := b.flush(batch); err != nil {
		b.logger.Warn("batch rejected downstream",
			zap.String("batch_id", batch.ID),
			zap.Int("size", batch.Size()),
			zap.Error(err),
		)
	}
}

// Close 停止接收,排空剩余工作项并冲洗收尾批次。幂等。
func (b *Batcher) Close() {
	if b.closed.Swap(true) {
		return
	}
	close(b.stopCh)
	b.wg.Wait()

	// 与 closed 标记竞争漏进缓冲的条目在此清理
	for {
		select {
		case e := <-b.queue:
			e.future.Fail(types.NewShuttingDownError())
		default:
			return
		}
	}
}

// Stats 返回批组装统计。
func (b *Batcher) Stats() Stats {
	return Stats{
		Enqueued:     b.enqueued.Load(),
		Rejected:     b.rejected.Load(),
		Batches:      b.batches.Load(),
		SizeFlushes:  b.sizeFlushes.Load(),
		TimerFlushes: b.timerFlushes.Load(),
		Queued:       len(b.queue),
	}
}

// Stats 包含批组装计数。
type Stats struct {
	Enqueued     int64 `json:"enqueued"`
	Rejected     int64 `json:"rejected"`
	Batches      int64 `json:"batches"`
	SizeFlushes  int64 `json:"size_flushes"`
	TimerFlushes int64 `json:"timer_flushes"`
	Queued       int   `json:"queued"`
}

// AverageBatchSize 返回平均批大小。
func (s Stats) AverageBatchSize() float64 {
	if s.Batches == 0 {
		return 0
	}
	return float64(s.Enqueued-int64(s.Queued)) / float64(s.Batches)
}
