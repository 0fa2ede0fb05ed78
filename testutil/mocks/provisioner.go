// =============================================================================
// 🏗️ MockProvisioner - 副本供给器模拟实现
// =============================================================================
// 用于测试的 Provisioner 模拟，支持失败注入与供给/回收计数
//
// 使用方法:
//
//	prov := mocks.NewMockProvisioner(kernel).FailFirst(2)
//	p, _ := pool.New(cfg, prov, logger)
// =============================================================================
package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/BaSui01/batchflow/pool"
)

// MockProvisioner 是副本供给器的模拟实现
type MockProvisioner struct {
	mu sync.Mutex

	kernel pool.Kernel

	// 错误注入
	failFirst int
	failAfter int
	err       error

	// 观测
	provisions int
	teardowns  int
	workerIDs  []string
}

// NewMockProvisioner 创建共享给定内核的供给器模拟
func NewMockProvisioner(kernel pool.Kernel) *MockProvisioner {
	return &MockProvisioner{
		kernel: kernel,
		err:    errors.New("provisioning capacity exhausted"),
	}
}

// FailFirst 前 n 次 Provision 调用失败,之后恢复
func (p *MockProvisioner) FailFirst(n int) *MockProvisioner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFirst = n
	return p
}

// FailAfter 第 n 次之后的 Provision 调用全部失败
func (p *MockProvisioner) FailAfter(n int) *MockProvisioner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAfter = n
	return p
}

// WithError 自定义注入的错误
func (p *MockProvisioner) WithError(err error) *MockProvisioner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// Provision 实现 pool.Provisioner
func (p *MockProvisioner) Provision(ctx context.Context, workerID string) (pool.Kernel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.provisions++
	if p.failFirst > 0 && p.provisions <= p.failFirst {
		return nil, p.err
	}
	if p.failAfter > 0 && p.provisions > p.failAfter {
		return nil, p.err
	}
	p.workerIDs = append(p.workerIDs, workerID)
	return p.kernel, nil
}

// Teardown 实现 pool.Provisioner
func (p *MockProvisioner) Teardown(ctx context.Context, workerID string, kernel pool.Kernel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardowns++
	return nil
}

// Provisions 返回 Provision 调用次数
func (p *MockProvisioner) Provisions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provisions
}

// Teardowns 返回 Teardown 调用次数
func (p *MockProvisioner) Teardowns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.teardowns
}

// WorkerIDs 返回成功供给过的 worker ID 序列
func (p *MockProvisioner) WorkerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.workerIDs))
	copy(out, p.workerIDs)
	return out
}
