// Package journal 把扩缩容事件持久化到关系型数据库,供审计与历史查询。
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ 扩缩容事件日志
// =============================================================================

// ScaleEvent 是一条持久化的扩缩容评估记录。
type ScaleEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	AvgLatency  time.Duration `gorm:"column:avg_latency_ns" json:"avg_latency"`
	SampleCount int           `json:"sample_count"`
	Replicas    int           `json:"replicas"`
	Desired     int           `json:"desired"`
	Direction   string        `gorm:"size:8;index" json:"direction"`
	Reason      string        `gorm:"size:255" json:"reason"`
	Applied     bool          `json:"applied"`
	Error       string        `gorm:"size:255" json:"error,omitempty"`
}

// Config 日志存储配置
type Config struct {
	// 数据库驱动:sqlite、postgres 或 mysql
	Driver string `yaml:"driver" json:"driver"`

	// 数据源
	DSN string `yaml:"dsn" json:"dsn"`

	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`

	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 返回默认日志存储配置
func DefaultConfig() Config {
	return Config{
		Driver:              "sqlite",
		DSN:                 "file:batchflow.db",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max open conns must be >= 1, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns < 1 {
		return fmt.Errorf("max idle conns must be >= 1, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle conns %d must be <= max open conns %d", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// Journal 扩缩容事件日志,连接池参数与健康检查随实例托管。
type Journal struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// Open 按配置打开数据库并迁移事件表
func Open(config Config, logger *zap.Logger) (*Journal, error) {
	if config.Driver == "" {
		return nil, fmt.Errorf("journal driver not configured")
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported journal driver: %s (supported: sqlite, postgres, mysql)", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect journal database: %w", err)
	}

	if err := db.AutoMigrate(&ScaleEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate scale events table: %w", err)
	}

	return New(db, config, logger)
}

// New 基于已有的 GORM 连接创建日志实例,不执行迁移
func New(db *gorm.DB, config Config, logger *zap.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	j := &Journal{
		db:     db,
		sqlDB:  sqlDB,
		config: config,
		logger: logger.With(zap.String("component", "journal")),
	}

	// 启动健康检查
	if config.HealthCheckInterval > 0 {
		go j.healthCheckLoop()
	}

	logger.Info("scale event journal initialized",
		zap.String("driver", config.Driver),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns),
	)

	return j, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Record 追加一条扩缩容事件
func (j *Journal) Record(ctx context.Context, event ScaleEvent) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return fmt.Errorf("journal is closed")
	}

	if err := j.db.WithContext(ctx).Create(&event).Error; err != nil {
		j.logger.Error("scale event record failed", zap.Error(err))
		return fmt.Errorf("scale event record failed: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近 limit 条事件
func (j *Journal) Recent(ctx context.Context, limit int) ([]ScaleEvent, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}
	if limit < 1 {
		return nil, nil
	}

	var events []ScaleEvent
	err := j.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("scale event query failed: %w", err)
	}
	return events, nil
}

// Summary 返回各方向的事件计数
func (j *Journal) Summary(ctx context.Context) (map[string]int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	var rows []struct {
		Direction string
		Count     int64
	}
	err := j.db.WithContext(ctx).
		Model(&ScaleEvent{}).
		Select("direction, count(*) as count").
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scale event summary failed: %w", err)
	}

	summary := make(map[string]int64, len(rows))
	for _, row := range rows {
		summary[row.Direction] = row.Count
	}
	return summary, nil
}

// Compact 只保留最新的 keep 条事件,返回删除的行数。
// 删除在带重试的事务里执行,避免与写入路径的锁冲突。
func (j *Journal) Compact(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be >= 1, got %d", keep)
	}

	var removed int64
	err := j.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var boundary ScaleEvent
		err := tx.Order("id DESC").Offset(keep - 1).Take(&boundary).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 行数不足 keep,无事可做
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Where("id < ?", boundary.ID).Delete(&ScaleEvent{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("journal compact failed: %w", err)
	}

	if removed > 0 {
		j.logger.Info("journal compacted",
			zap.Int64("removed", removed),
			zap.Int("kept", keep),
		)
	}
	return removed, nil
}

// DB 返回底层 GORM 实例
func (j *Journal) DB() *gorm.DB {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.db
}

// Ping 检查数据库连接
func (j *Journal) Ping(ctx context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return fmt.Errorf("journal is closed")
	}

	return j.sqlDB.PingContext(ctx)
}

// Close 关闭日志存储
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	j.closed = true
	j.logger.Info("closing scale event journal")

	return j.sqlDB.Close()
}

// =============================================================================
// 🔄 事务管理
// =============================================================================

// TransactionFunc 事务函数类型
type TransactionFunc func(tx *gorm.DB) error

// WithTransaction 在事务中执行函数
func (j *Journal) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return fmt.Errorf("journal is closed")
	}
	db := j.db
	j.mu.RUnlock()

	return db.WithContext(ctx).Transaction(fn)
}

// WithTransactionRetry 在事务中执行函数,可重试错误按指数退避重试
func (j *Journal) WithTransactionRetry(ctx context.Context, maxRetries int, fn TransactionFunc) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := j.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return err
		}

		j.logger.Warn("journal transaction failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)

		backoff := time.Duration(1<<uint(i)) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("journal transaction failed after %d retries: %w", maxRetries, lastErr)
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	// 死锁
	if strings.Contains(errMsg, "deadlock") {
		return true
	}

	// 序列化失败(PostgreSQL SQLSTATE 40001)
	if strings.Contains(errMsg, "serialization failure") || strings.Contains(errMsg, "40001") {
		return true
	}

	// 连接相关错误
	if strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "broken pipe") {
		return true
	}

	// 锁超时
	if strings.Contains(errMsg, "lock timeout") || strings.Contains(errMsg, "lock wait timeout") {
		return true
	}

	// driver: bad connection(Go database/sql 标准错误)
	if strings.Contains(errMsg, "bad connection") {
		return true
	}

	return false
}

// =============================================================================
// 🏥 健康检查与统计
// =============================================================================

// healthCheckLoop 健康检查循环
func (j *Journal) healthCheckLoop() {
	ticker := time.NewTicker(j.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		j.mu.RLock()
		if j.closed {
			j.mu.RUnlock()
			return
		}
		j.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := j.Ping(ctx); err != nil {
			j.logger.Error("journal health check failed", zap.Error(err))
		} else {
			stats := j.sqlDB.Stats()
			j.logger.Debug("journal health check passed",
				zap.Int("open_connections", stats.OpenConnections),
				zap.Int("in_use", stats.InUse),
				zap.Int("idle", stats.Idle),
			)
		}
		cancel()
	}
}

// PoolStats 连接池统计信息
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxIdleClosed      int64         `json:"max_idle_closed"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
}

// Stats 返回连接池统计信息
func (j *Journal) Stats() PoolStats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stats := j.sqlDB.Stats()
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}
