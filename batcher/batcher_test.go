package batcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/batchflow/testutil"
	"github.com/BaSui01/batchflow/types"
)

// batchCollector 线程安全地收集交付的批次
type batchCollector struct {
	mu      sync.Mutex
	batches []*types.Batch
	arrived chan *types.Batch
}

func newBatchCollector() *batchCollector {
	return &batchCollector{arrived: make(chan *types.Batch, 64)}
}

func (c *batchCollector) flush(batch *types.Batch) error {
	c.mu.Lock()
	c.batches = append(c.batches, batch)
	c.mu.Unlock()
	c.arrived <- batch
	return nil
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *batchCollector) all() []*types.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

func enqueueOne(t *testing.T, b *Batcher, payload any) *types.Future {
	t.Helper()
	item := types.NewWorkItem(payload)
	future := types.NewFuture(item)
	require.NoError(t, b.Enqueue(item, future))
	return future
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	flush := func(*types.Batch) error { return nil }

	_, err := New(Config{MaxBatchSize: 0, FlushInterval: time.Second}, flush, zap.NewNop())
	assert.Error(t, err)

	_, err = New(Config{MaxBatchSize: 1, FlushInterval: 0}, flush, zap.NewNop())
	assert.Error(t, err)

	_, err = New(Config{MaxBatchSize: 1, FlushInterval: time.Second}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestBatcher_SizeTrigger(t *testing.T) {
	t.Parallel()

	col := newBatchCollector()
	b, err := New(Config{MaxBatchSize: 3, FlushInterval: time.Hour}, col.flush, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		f := enqueueOne(t, b, i)
		ids = append(ids, f.Item().ID)
	}

	// 尺寸触发不等计时器:一小时的刷新间隔内必须立即出批
	batch, ok := testutil.WaitForChannel(col.arrived, time.Second)
	require.True(t, ok, "size trigger must seal without waiting for the timer")
	require.Equal(t, 3, batch.Size())
	for i, item := range batch.Items {
		assert.Equal(t, ids[i], item.ID, "enqueue order must be preserved")
	}

	st := b.Stats()
	assert.Equal(t, int64(1), st.SizeFlushes)
	assert.Equal(t, int64(0), st.TimerFlushes)
}

func TestBatcher_TimerTrigger(t *testing.T) {
	t.Parallel()

	col := newBatchCollector()
	b, err := New(Config{MaxBatchSize: 10, FlushInterval: 60 * time.Millisecond}, col.flush, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	start := time.Now()
	f1 := enqueueOne(t, b, "a")
	f2 := enqueueOne(t, b, "b")

	batch, ok := testutil.WaitForChannel(col.arrived, 2*time.Second)
	require.True(t, ok)
	elapsed := time.Since(start)

	require.Equal(t, 2, batch.Size())
	assert.Equal(t, f1.Item().ID, batch.Items[0].ID)
	assert.Equal(t, f2.Item().ID, batch.Items[1].ID)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "flush must not run before the interval")

	st := b.Stats()
	assert.Equal(t, int64(1), st.TimerFlushes)
}

func TestBatcher_TimerRearmsPerFirstItem(t *testing.T) {
	t.Parallel()

	col := newBatchCollector()
	b, err := New(Config{MaxBatchSize: 10, FlushInterval: 50 * time.Millisecond}, col.flush, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	// 两个相继的累积周期各自从首项起算
	enqueueOne(t, b, 1)
	_, ok := testutil.WaitForChannel(col.arrived, time.Second)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	start := time.Now()
	enqueueOne(t, b, 2)
	_, ok = testutil.WaitForChannel(col.arrived, time.Second)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"second cycle must time from its own first item")
	assert.Equal(t, 2, col.count())
}

func TestBatcher_EmptyWindowProducesNoBatch(t *testing.T) {
	t.Parallel()

	col := newBatchCollector()
	b, err := New(Config{MaxBatchSize: 5, FlushInterval: 30 * time.Millisecond}, col.flush, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	// 无任何工作项时跨过多个刷新间隔,不得产出批次
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, col.count())

	// 随后首项正常武装计时器
	enqueueOne(t, b, "x")
	batch, ok := testutil.WaitForChannel(col.arrived, time.Second)
	require.True(t, ok)
	assert.Equal(t, 1, batch.Size())
}

func TestBatcher_QueueFullWhenFlushPathBlocked(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{}, 8)
	gate := make(chan struct{})
	blockingFlush := func(batch *types.Batch) error {
		entered <- struct{}{}
		<-gate
		return nil
	}

	b, err := New(Config{MaxBatchSize: 2, FlushInterval: time.Hour}, blockingFlush, zap.NewNop())
	require.NoError(t, err)

	// 第一批封板后交付被卡住
	f1 := enqueueOne(t, b, 1)
	f2 := enqueueOne(t, b, 2)
	_, ok := testutil.WaitForChannel(entered, time.Second)
	require.True(t, ok, "first batch must reach the flush path")

	// 缓冲重新填满
	f3 := enqueueOne(t, b, 3)
	f4 := enqueueOne(t, b, 4)

	// 生产者快于冲洗路径:此时必须同步拒绝
	item := types.NewWorkItem(5)
	err = b.Enqueue(item, types.NewFuture(item))
	require.Error(t, err)
	assert.True(t, types.IsQueueFull(err))
	assert.True(t, types.IsRetryable(err))

	close(gate)
	b.Close()

	// 接纳过的四个工作项最终都在批次里
	st := b.Stats()
	assert.Equal(t, int64(4), st.Enqueued)
	assert.Equal(t, int64(1), st.Rejected)
	assert.Equal(t, int64(2), st.Batches)
	for _, f := range []*types.Future{f1, f2, f3, f4} {
		assert.Equal(t, types.FuturePending, f.State(), "batcher does not resolve futures itself")
	}
}

func TestBatcher_CloseFlushesRemainder(t *testing.T) {
	t.Parallel()

	col := newBatchCollector()
	b, err := New(Config{MaxBatchSize: 10, FlushInterval: time.Hour}, col.flush, zap.NewNop())
	require.NoError(t, err)

	enqueueOne(t, b, "a")
	enqueueOne(t, b, "b")
	b.Close()

	require.Equal(t, 1, col.count(), "close must flush the open batch")
	assert.Equal(t, 2, col.all()[0].Size())

	// 关闭后拒绝新工作项
	item := types.NewWorkItem("late")
	err = b.Enqueue(item, types.NewFuture(item))
	assert.True(t, types.IsShuttingDown(err))

	// 幂等
	b.Close()
}

// TestProperty_Batcher_NoLossNoDuplication 验证任意提交序列下:接纳的工作项
// 不丢失、不重复、跨批保持提交顺序,且每个批次大小在 [1, max] 内。
func TestProperty_Batcher_NoLossNoDuplication(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSize := rapid.IntRange(1, 5).Draw(rt, "maxSize")
		n := rapid.IntRange(0, 40).Draw(rt, "n")

		col := newBatchCollector()
		b, err := New(Config{MaxBatchSize: maxSize, FlushInterval: 5 * time.Millisecond}, col.flush, zap.NewNop())
		require.NoError(t, err)

		var accepted []string
		for i := 0; i < n; i++ {
			item := types.NewWorkItem(i)
			if b.Enqueue(item, types.NewFuture(item)) == nil {
				accepted = append(accepted, item.ID)
			}
		}
		b.Close()

		var delivered []string
		for _, batch := range col.all() {
			require.GreaterOrEqual(t, batch.Size(), 1)
			require.LessOrEqual(t, batch.Size(), maxSize)
			require.Equal(t, len(batch.Items), len(batch.Futures))
			for _, item := range batch.Items {
				delivered = append(delivered, item.ID)
			}
		}

		require.Equal(t, accepted, delivered)
	})
}
