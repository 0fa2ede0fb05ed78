// =============================================================================
// 🧮 MockKernel - 计算内核模拟实现
// =============================================================================
// 用于测试的批处理内核模拟，支持回显、固定延迟、错误注入与并发观测
//
// 使用方法:
//
//	kernel := mocks.NewMockKernel().WithEcho().WithDelay(20 * time.Millisecond)
//	outputs, err := kernel.Process(ctx, payloads)
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockKernel 是计算内核的模拟实现
type MockKernel struct {
	mu sync.Mutex

	// 行为配置
	transform   func(payload any) any
	delay       time.Duration
	hold        <-chan struct{}
	err         error
	failAfter   int // 调用序号超过该值后注入 err;0 表示每次都注入
	outputCount int // >=0 时强制输出切片长度,用于契约破坏场景

	// 观测
	calls         atomic.Int64
	items         atomic.Int64
	inFlight      atomic.Int64
	maxConcurrent atomic.Int64
	batchSizes    []int
}

// NewMockKernel 创建回显行为的内核模拟
func NewMockKernel() *MockKernel {
	return &MockKernel{transform: func(p any) any { return p }, outputCount: -1, failAfter: -1}
}

// WithEcho 输出与载荷逐项相同
func (k *MockKernel) WithEcho() *MockKernel {
	k.transform = func(p any) any { return p }
	return k
}

// WithTransform 逐项变换载荷
func (k *MockKernel) WithTransform(fn func(payload any) any) *MockKernel {
	k.transform = fn
	return k
}

// WithDelay 每次 Process 固定耗时,用于驱动延迟窗口
func (k *MockKernel) WithDelay(d time.Duration) *MockKernel {
	k.delay = d
	return k
}

// WithHold 使 Process 阻塞直到通道被关闭或收到信号
func (k *MockKernel) WithHold(hold <-chan struct{}) *MockKernel {
	k.hold = hold
	return k
}

// WithError 每次调用都返回该错误
func (k *MockKernel) WithError(err error) *MockKernel {
	k.err = err
	k.failAfter = 0
	return k
}

// WithErrorAfter 第 n 次调用之后开始返回该错误
func (k *MockKernel) WithErrorAfter(n int, err error) *MockKernel {
	k.err = err
	k.failAfter = n
	return k
}

// WithOutputCount 强制输出长度,用于模拟内核违反逐项对应契约
func (k *MockKernel) WithOutputCount(n int) *MockKernel {
	k.outputCount = n
	return k
}

// Process 实现内核接口
func (k *MockKernel) Process(ctx context.Context, payloads []any) ([]any, error) {
	call := k.calls.Add(1)
	k.items.Add(int64(len(payloads)))

	cur := k.inFlight.Add(1)
	for {
		max := k.maxConcurrent.Load()
		if cur <= max || k.maxConcurrent.CompareAndSwap(max, cur) {
			break
		}
	}
	defer k.inFlight.Add(-1)

	k.mu.Lock()
	k.batchSizes = append(k.batchSizes, len(payloads))
	transform, delay, hold := k.transform, k.delay, k.hold
	errInject, failAfter, outputCount := k.err, k.failAfter, k.outputCount
	k.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if errInject != nil && (failAfter == 0 || call > int64(failAfter)) {
		return nil, errInject
	}

	n := len(payloads)
	if outputCount >= 0 {
		n = outputCount
	}
	outputs := make([]any, n)
	for i := 0; i < n && i < len(payloads); i++ {
		outputs[i] = transform(payloads[i])
	}
	return outputs, nil
}

// Calls 返回 Process 被调用的次数
func (k *MockKernel) Calls() int64 {
	return k.calls.Load()
}

// Items 返回累计处理的载荷数
func (k *MockKernel) Items() int64 {
	return k.items.Load()
}

// MaxConcurrent 返回观测到的最大并发 Process 数
func (k *MockKernel) MaxConcurrent() int64 {
	return k.maxConcurrent.Load()
}

// BatchSizes 返回每次调用的批大小序列
func (k *MockKernel) BatchSizes() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]int, len(k.batchSizes))
	copy(out, k.batchSizes)
	return out
}
