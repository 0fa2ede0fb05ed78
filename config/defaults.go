// =============================================================================
// 📦 BatchFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Workflow:  DefaultWorkflowConfig(),
		Server:    DefaultServerConfig(),
		Sink:      DefaultSinkConfig(),
		Journal:   DefaultJournalConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultWorkflowConfig 返回默认管线配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MinReplicas:      1,
		MaxReplicas:      8,
		MaxBatchSize:     16,
		FlushInterval:    50 * time.Millisecond,
		TargetLatency:    200 * time.Millisecond,
		BacklogSize:      64,
		EvaluateInterval: time.Second,
		WindowSize:       128,
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MetricsAddr:     ":9091",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		AllowedOrigin:   "*",
		SubmitTimeout:   30 * time.Second,
	}
}

// DefaultSinkConfig 返回默认观测汇配置
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		Stream:       "batchflow:events",
		MaxStreamLen: 10000,
		LatestKey:    "batchflow:latest",
		LatestTTL:    time.Hour,
	}
}

// DefaultJournalConfig 返回默认事件日志配置
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		Enabled:             false,
		Driver:              "sqlite",
		DSN:                 "batchflow.db",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "batchflow",
		SampleRate:   0.1,
	}
}
