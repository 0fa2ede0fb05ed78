package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 📡 Redis 观测汇
// =============================================================================

// RedisConfig Redis 观测汇配置
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 扩缩事件流的键名
	Stream string `yaml:"stream" json:"stream"`

	// 事件流的近似保留长度
	MaxStreamLen int64 `yaml:"max_stream_len" json:"max_stream_len"`

	// 最近样本的键名
	LatestKey string `yaml:"latest_key" json:"latest_key"`

	// 最近样本的过期时间
	LatestTTL time.Duration `yaml:"latest_ttl" json:"latest_ttl"`
}

// DefaultRedisConfig 返回默认 Redis 观测汇配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		Stream:       "batchflow:scale:events",
		MaxStreamLen: 1024,
		LatestKey:    "batchflow:scale:latest",
		LatestTTL:    10 * time.Minute,
	}
}

// RedisSink 把观测样本追加到容量受限的 Redis 流,并维护一个可直接
// GET 的最近样本键,供外部仪表盘与巡检脚本消费。
type RedisSink struct {
	redis  *redis.Client
	config RedisConfig
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewRedisSink 创建 Redis 观测汇并验证连接
func NewRedisSink(config RedisConfig, logger *zap.Logger) (*RedisSink, error) {
	if config.Stream == "" {
		return nil, fmt.Errorf("stream key cannot be empty")
	}
	if config.LatestKey == "" {
		return nil, fmt.Errorf("latest key cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisSink{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "redis_sink")),
	}

	logger.Info("redis sink initialized",
		zap.String("addr", config.Addr),
		zap.String("stream", config.Stream),
		zap.Int64("max_stream_len", config.MaxStreamLen),
	)

	return s, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Publish 实现 Observer:样本进流,同时刷新最近样本键。
func (s *RedisSink) Publish(ctx context.Context, sample Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("redis sink is closed")
	}

	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.config.Stream,
		MaxLen: s.config.MaxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"ts":             sample.Timestamp.UTC().Format(time.RFC3339Nano),
			"avg_latency_ms": strconv.FormatFloat(float64(sample.AvgLatency)/float64(time.Millisecond), 'f', -1, 64),
			"sample_count":   sample.SampleCount,
			"replicas":       sample.Replicas,
			"desired":        sample.Desired,
			"direction":      sample.Direction,
			"reason":         sample.Reason,
		},
	}).Err()
	if err != nil {
		s.logger.Error("scale event append failed", zap.Error(err))
		return fmt.Errorf("scale event append failed: %w", err)
	}

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	if err := s.redis.Set(ctx, s.config.LatestKey, string(data), s.config.LatestTTL).Err(); err != nil {
		s.logger.Error("latest sample refresh failed", zap.Error(err))
		return fmt.Errorf("latest sample refresh failed: %w", err)
	}

	return nil
}

// Latest 返回最近一次发布的样本。键不存在时 ok 为 false。
func (s *RedisSink) Latest(ctx context.Context) (Sample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Sample{}, false, fmt.Errorf("redis sink is closed")
	}

	val, err := s.redis.Get(ctx, s.config.LatestKey).Result()
	if err == redis.Nil {
		return Sample{}, false, nil
	}
	if err != nil {
		return Sample{}, false, fmt.Errorf("latest sample get failed: %w", err)
	}

	var sample Sample
	if err := json.Unmarshal([]byte(val), &sample); err != nil {
		return Sample{}, false, fmt.Errorf("failed to unmarshal sample: %w", err)
	}
	return sample, true, nil
}

// History 按时间倒序返回最近 n 条扩缩事件。
func (s *RedisSink) History(ctx context.Context, n int64) ([]Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("redis sink is closed")
	}
	if n < 1 {
		return nil, nil
	}

	msgs, err := s.redis.XRevRangeN(ctx, s.config.Stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("scale event range failed: %w", err)
	}

	samples := make([]Sample, 0, len(msgs))
	for _, msg := range msgs {
		samples = append(samples, sampleFromValues(msg.Values))
	}
	return samples, nil
}

// Ping 检查 Redis 连接
func (s *RedisSink) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("redis sink is closed")
	}

	return s.redis.Ping(ctx).Err()
}

// Close 关闭 Redis 观测汇
func (s *RedisSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Info("closing redis sink")

	return s.redis.Close()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// sampleFromValues 从流条目的字段表还原样本,缺失或畸形字段按零值处理
func sampleFromValues(values map[string]interface{}) Sample {
	var sample Sample
	if v, ok := values["ts"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			sample.Timestamp = ts
		}
	}
	if v, ok := values["avg_latency_ms"].(string); ok {
		if ms, err := strconv.ParseFloat(v, 64); err == nil {
			sample.AvgLatency = time.Duration(ms * float64(time.Millisecond))
		}
	}
	sample.SampleCount = intField(values, "sample_count")
	sample.Replicas = intField(values, "replicas")
	sample.Desired = intField(values, "desired")
	if v, ok := values["direction"].(string); ok {
		sample.Direction = v
	}
	if v, ok := values["reason"].(string); ok {
		sample.Reason = v
	}
	return sample
}

func intField(values map[string]interface{}, key string) int {
	v, ok := values[key].(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
