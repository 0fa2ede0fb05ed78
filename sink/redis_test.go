package sink

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 RedisSink 测试
// =============================================================================

func setupTestSink(t *testing.T) (*miniredis.Miniredis, *RedisSink) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := DefaultRedisConfig()
	config.Addr = mr.Addr()
	config.LatestTTL = time.Minute

	s, err := NewRedisSink(config, zap.NewNop())
	require.NoError(t, err)

	return mr, s
}

func TestNewRedisSink(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()
	defer s.Close()

	assert.NotNil(t, s)
	assert.NotNil(t, s.redis)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewRedisSink_Validation(t *testing.T) {
	config := DefaultRedisConfig()
	config.Stream = ""
	_, err := NewRedisSink(config, zap.NewNop())
	assert.Error(t, err)

	config = DefaultRedisConfig()
	config.LatestKey = ""
	_, err = NewRedisSink(config, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRedisSink_ConnectFailed(t *testing.T) {
	config := DefaultRedisConfig()
	config.Addr = "localhost:1" // 不可达地址

	s, err := NewRedisSink(config, zap.NewNop())
	assert.Nil(t, s)
	assert.Error(t, err)
}

func TestRedisSink_PublishAndLatest(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()
	defer s.Close()

	ctx := context.Background()
	sample := Sample{
		Timestamp:   time.Now(),
		AvgLatency:  180 * time.Millisecond,
		SampleCount: 9,
		Replicas:    2,
		Desired:     3,
		Direction:   "up",
		Reason:      "avg latency above target",
	}
	require.NoError(t, s.Publish(ctx, sample))

	got, ok, err := s.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sample.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, sample.AvgLatency, got.AvgLatency)
	assert.Equal(t, sample.SampleCount, got.SampleCount)
	assert.Equal(t, sample.Replicas, got.Replicas)
	assert.Equal(t, sample.Desired, got.Desired)
	assert.Equal(t, sample.Direction, got.Direction)
	assert.Equal(t, sample.Reason, got.Reason)
}

func TestRedisSink_LatestMissing(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()
	defer s.Close()

	_, ok, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSink_LatestExpires(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, testSample(3)))

	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSink_History(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()
	defer s.Close()

	ctx := context.Background()
	for desired := 1; desired <= 3; desired++ {
		require.NoError(t, s.Publish(ctx, testSample(desired)))
	}

	// 倒序:最新的在前
	samples, err := s.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 3, samples[0].Desired)
	assert.Equal(t, 2, samples[1].Desired)

	assert.Equal(t, 220*time.Millisecond, samples[0].AvgLatency)
	assert.Equal(t, "up", samples[0].Direction)
	assert.False(t, samples[0].Timestamp.IsZero())
}

func TestRedisSink_HistoryEmpty(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()
	defer s.Close()

	samples, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, samples)

	samples, err = s.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, samples)
}

func TestRedisSink_Closed(t *testing.T) {
	mr, s := setupTestSink(t)
	defer mr.Close()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	ctx := context.Background()
	assert.Error(t, s.Publish(ctx, testSample(1)))
	_, _, err := s.Latest(ctx)
	assert.Error(t, err)
	_, err = s.History(ctx, 5)
	assert.Error(t, err)
	assert.Error(t, s.Ping(ctx))
}
