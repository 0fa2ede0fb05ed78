// =============================================================================
// 📦 BatchFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("BATCHFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/batchflow/journal"
	"github.com/BaSui01/batchflow/sink"
	"github.com/BaSui01/batchflow/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 BatchFlow 的完整配置结构
type Config struct {
	// Workflow 管线配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Sink 观测汇配置
	Sink SinkConfig `yaml:"sink" env:"SINK"`

	// Journal 扩缩容事件日志配置
	Journal JournalConfig `yaml:"journal" env:"JOURNAL"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// WorkflowConfig 管线配置,逐字段对应 types.WorkflowSpec
type WorkflowConfig struct {
	// 副本数下限
	MinReplicas int `yaml:"min_replicas" env:"MIN_REPLICAS"`
	// 副本数上限
	MaxReplicas int `yaml:"max_replicas" env:"MAX_REPLICAS"`
	// 批大小上限,也是尺寸触发阈值
	MaxBatchSize int `yaml:"max_batch_size" env:"MAX_BATCH_SIZE"`
	// 时间触发间隔
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	// 延迟 SLO 目标
	TargetLatency time.Duration `yaml:"target_latency" env:"TARGET_LATENCY"`
	// 派发积压上限
	BacklogSize int `yaml:"backlog_size" env:"BACKLOG_SIZE"`
	// 扩缩容评估周期
	EvaluateInterval time.Duration `yaml:"evaluate_interval" env:"EVALUATE_INTERVAL"`
	// 延迟窗口容量
	WindowSize int `yaml:"window_size" env:"WINDOW_SIZE"`
}

// Spec 转换为管线规格
func (w WorkflowConfig) Spec() types.WorkflowSpec {
	return types.WorkflowSpec{
		MinReplicas:      w.MinReplicas,
		MaxReplicas:      w.MaxReplicas,
		MaxBatchSize:     w.MaxBatchSize,
		FlushInterval:    w.FlushInterval,
		TargetLatency:    w.TargetLatency,
		BacklogSize:      w.BacklogSize,
		EvaluateInterval: w.EvaluateInterval,
		WindowSize:       w.WindowSize,
	}
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// API 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// Prometheus 指标监听地址
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 单客户端每秒请求上限
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 单客户端突发上限
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// JWT 签名密钥,为空时关闭鉴权
	AuthSecret string `yaml:"auth_secret" env:"AUTH_SECRET"`
	// CORS 允许的来源
	AllowedOrigin string `yaml:"allowed_origin" env:"ALLOWED_ORIGIN"`
	// 单次提交的等待超时
	SubmitTimeout time.Duration `yaml:"submit_timeout" env:"SUBMIT_TIMEOUT"`
}

// SinkConfig 观测汇配置
type SinkConfig struct {
	// 是否启用 Redis 观测汇
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Redis 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 扩缩事件流的键名
	Stream string `yaml:"stream" env:"STREAM"`
	// 事件流的近似保留长度
	MaxStreamLen int64 `yaml:"max_stream_len" env:"MAX_STREAM_LEN"`
	// 最近样本的键名
	LatestKey string `yaml:"latest_key" env:"LATEST_KEY"`
	// 最近样本的过期时间
	LatestTTL time.Duration `yaml:"latest_ttl" env:"LATEST_TTL"`
}

// RedisConfig 转换为 sink 包的 Redis 配置
func (s SinkConfig) RedisConfig() sink.RedisConfig {
	return sink.RedisConfig{
		Addr:         s.Addr,
		Password:     s.Password,
		DB:           s.DB,
		MaxRetries:   s.MaxRetries,
		PoolSize:     s.PoolSize,
		MinIdleConns: s.MinIdleConns,
		Stream:       s.Stream,
		MaxStreamLen: s.MaxStreamLen,
		LatestKey:    s.LatestKey,
		LatestTTL:    s.LatestTTL,
	}
}

// JournalConfig 扩缩容事件日志配置
type JournalConfig struct {
	// 是否启用持久化
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 数据库驱动:sqlite、postgres 或 mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 数据源
	DSN string `yaml:"dsn" env:"DSN"`
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// StoreConfig 转换为 journal 包的存储配置
func (j JournalConfig) StoreConfig() journal.Config {
	return journal.Config{
		Driver:              j.Driver,
		DSN:                 j.DSN,
		MaxIdleConns:        j.MaxIdleConns,
		MaxOpenConns:        j.MaxOpenConns,
		ConnMaxLifetime:     j.ConnMaxLifetime,
		ConnMaxIdleTime:     j.ConnMaxIdleTime,
		HealthCheckInterval: j.HealthCheckInterval,
	}
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "BATCHFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 管线规格校验
	if err := c.Workflow.Spec().WithDefaults().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	// 服务器配置校验
	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, "rate limits must not be negative")
	}
	if c.Server.SubmitTimeout <= 0 {
		errs = append(errs, "submit_timeout must be positive")
	}

	// 观测汇配置校验
	if c.Sink.Enabled && c.Sink.Addr == "" {
		errs = append(errs, "sink addr must not be empty when sink is enabled")
	}

	// 事件日志配置校验
	if c.Journal.Enabled {
		switch c.Journal.Driver {
		case "sqlite", "postgres", "mysql":
		default:
			errs = append(errs, fmt.Sprintf("unsupported journal driver %q", c.Journal.Driver))
		}
		if err := c.Journal.StoreConfig().Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
