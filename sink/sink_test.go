package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collectObserver struct {
	mu      sync.Mutex
	samples []Sample
	err     error
}

func (o *collectObserver) Publish(_ context.Context, sample Sample) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.samples = append(o.samples, sample)
	return nil
}

func (o *collectObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.samples)
}

func testSample(desired int) Sample {
	return Sample{
		Timestamp:   time.Now(),
		AvgLatency:  220 * time.Millisecond,
		SampleCount: 12,
		Replicas:    2,
		Desired:     desired,
		Direction:   "up",
		Reason:      "avg latency above target",
	}
}

func TestLogSink_Publish(t *testing.T) {
	t.Parallel()

	s := NewLogSink(zap.NewNop())
	require.NoError(t, s.Publish(context.Background(), testSample(3)))

	hold := testSample(2)
	hold.Direction = "hold"
	require.NoError(t, s.Publish(context.Background(), hold))
}

func TestMultiSink_FanOut(t *testing.T) {
	t.Parallel()

	a := &collectObserver{}
	b := &collectObserver{}
	ms := NewMultiSink(a, b)

	require.NoError(t, ms.Publish(context.Background(), testSample(3)))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestMultiSink_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend unavailable")
	bad := &collectObserver{err: boom}
	good := &collectObserver{}
	ms := NewMultiSink(bad, good)

	err := ms.Publish(context.Background(), testSample(3))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, good.count(), "healthy observers still receive the sample")
}

func TestBroadcastSink_LastAndSubscribe(t *testing.T) {
	t.Parallel()

	bs := NewBroadcastSink()
	_, hasLast := bs.Last()
	assert.False(t, hasLast)

	ch, cancel := bs.Subscribe()
	assert.Equal(t, 1, bs.Subscribers())

	require.NoError(t, bs.Publish(context.Background(), testSample(2)))
	require.NoError(t, bs.Publish(context.Background(), testSample(3)))

	first := <-ch
	second := <-ch
	assert.Equal(t, 2, first.Desired)
	assert.Equal(t, 3, second.Desired)

	last, ok := bs.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Desired)

	cancel()
	assert.Equal(t, 0, bs.Subscribers())
	_, open := <-ch
	assert.False(t, open, "cancel must close the subscription channel")

	// 取消后再次发布不恐慌
	require.NoError(t, bs.Publish(context.Background(), testSample(4)))
	cancel()
}

func TestBroadcastSink_SlowSubscriberDropsSamples(t *testing.T) {
	t.Parallel()

	bs := NewBroadcastSink()
	ch, cancel := bs.Subscribe()
	defer cancel()

	// 订阅者不消费:发布不得阻塞,超出缓冲的样本被丢弃
	for i := 0; i < 40; i++ {
		require.NoError(t, bs.Publish(context.Background(), testSample(i)))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Greater(t, received, 0)
	assert.LessOrEqual(t, received, 16)

	last, ok := bs.Last()
	require.True(t, ok)
	assert.Equal(t, 39, last.Desired, "last sample must reflect the newest publish")
}
