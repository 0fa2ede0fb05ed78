// Package sink 将扩缩容控制器的观测样本发布到可插拔的后端:
// 日志、Redis 流、进程内广播,或它们的组合。
package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sample 是一次评估周期的观测快照。
type Sample struct {
	Timestamp   time.Time     `json:"timestamp"`
	AvgLatency  time.Duration `json:"avg_latency"`
	SampleCount int           `json:"sample_count"`
	Replicas    int           `json:"replicas"`
	Desired     int           `json:"desired"`
	Direction   string        `json:"direction"`
	Reason      string        `json:"reason"`
}

// Observer 接收观测样本。实现必须可并发调用;返回错误不会中断
// 控制循环,只会被记录。
type Observer interface {
	Publish(ctx context.Context, sample Sample) error
}

// LogSink 把样本写进结构化日志。扩缩动作记 Info,静默周期记 Debug。
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 创建日志观测汇。
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "scale_sink"))}
}

// Publish 实现 Observer。
func (s *LogSink) Publish(_ context.Context, sample Sample) error {
	fields := []zap.Field{
		zap.Duration("avg_latency", sample.AvgLatency),
		zap.Int("sample_count", sample.SampleCount),
		zap.Int("replicas", sample.Replicas),
		zap.Int("desired", sample.Desired),
		zap.String("direction", sample.Direction),
		zap.String("reason", sample.Reason),
	}
	if sample.Direction == "hold" {
		s.logger.Debug("scale evaluation", fields...)
	} else {
		s.logger.Info("scale decision", fields...)
	}
	return nil
}

// MultiSink 并发扇出到多个观测汇,聚合首个错误。
type MultiSink struct {
	observers []Observer
}

// NewMultiSink 组合多个观测汇。
func NewMultiSink(observers ...Observer) *MultiSink {
	return &MultiSink{observers: observers}
}

// Publish 实现 Observer。
func (s *MultiSink) Publish(ctx context.Context, sample Sample) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, o := range s.observers {
		o := o
		g.Go(func() error {
			return o.Publish(ctx, sample)
		})
	}
	return g.Wait()
}

// BroadcastSink 保留最近样本并向订阅者流式转发,慢订阅者丢样本而非阻塞
// 控制循环。供 WebSocket 观测通道使用。
type BroadcastSink struct {
	mu   sync.RWMutex
	last *Sample
	subs map[int]chan Sample
	next int
}

// NewBroadcastSink 创建进程内广播汇。
func NewBroadcastSink() *BroadcastSink {
	return &BroadcastSink{subs: make(map[int]chan Sample)}
}

// Publish 实现 Observer。
func (s *BroadcastSink) Publish(_ context.Context, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := sample
	s.last = &copied
	for _, ch := range s.subs {
		select {
		case ch <- sample:
		default:
		}
	}
	return nil
}

// Subscribe 返回样本流和取消函数。取消后通道关闭。
func (s *BroadcastSink) Subscribe() (<-chan Sample, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Sample, 16)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Last 返回最近一次发布的样本。
func (s *BroadcastSink) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Sample{}, false
	}
	return *s.last, true
}

// Subscribers 返回当前订阅者数量。
func (s *BroadcastSink) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
