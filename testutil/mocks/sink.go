// =============================================================================
// 📡 MockSink - 观测样本收集器
// =============================================================================
// 用于测试的观测汇模拟，按序收集控制器发布的样本并支持错误注入
//
// 使用方法:
//
//	ms := mocks.NewMockSink()
//	ctrl := autoscale.New(cfg, deps, autoscale.WithSink(ms))
//	samples := ms.Samples()
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/batchflow/sink"
)

// MockSink 是观测汇的模拟实现
type MockSink struct {
	mu      sync.Mutex
	samples []sink.Sample
	err     error
}

// NewMockSink 创建空的样本收集器
func NewMockSink() *MockSink {
	return &MockSink{}
}

// WithError 使后续 Publish 返回该错误
func (s *MockSink) WithError(err error) *MockSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Publish 实现 sink.Observer
func (s *MockSink) Publish(ctx context.Context, sample sink.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.samples = append(s.samples, sample)
	return nil
}

// Samples 返回已收集样本的副本
func (s *MockSink) Samples() []sink.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sink.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Count 返回已收集样本数
func (s *MockSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Last 返回最近一个样本
func (s *MockSink) Last() (sink.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return sink.Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}
