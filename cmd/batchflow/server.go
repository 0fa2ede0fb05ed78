package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/api/handlers"
	"github.com/BaSui01/batchflow/autoscale"
	"github.com/BaSui01/batchflow/config"
	"github.com/BaSui01/batchflow/internal/metrics"
	"github.com/BaSui01/batchflow/internal/server"
	"github.com/BaSui01/batchflow/internal/telemetry"
	"github.com/BaSui01/batchflow/journal"
	"github.com/BaSui01/batchflow/orchestrator"
	"github.com/BaSui01/batchflow/pool"
	"github.com/BaSui01/batchflow/sink"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 BatchFlow 的主服务器:在批处理管线外套上 HTTP API、
// Prometheus 指标、可选的 Redis 观测汇与事件日志。
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 批处理管线
	orch   *orchestrator.Orchestrator
	kernel pool.KernelFunc

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 观测组件
	metricsCollector *metrics.Collector
	broadcast        *sink.BroadcastSink
	redisSink        *sink.RedisSink
	scaleJournal     *journal.Journal
	otelProviders    *telemetry.Providers

	// Handlers
	healthHandler *handlers.HealthHandler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, kernel pool.KernelFunc) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		kernel:        kernel,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("batchflow", s.logger)

	// 2. 初始化观测汇与事件日志
	if err := s.initObservation(); err != nil {
		return fmt.Errorf("failed to init observation: %w", err)
	}

	// 3. 构建批处理管线
	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init pipeline: %w", err)
	}

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
		zap.Bool("sink_enabled", s.cfg.Sink.Enabled),
		zap.Bool("journal_enabled", s.cfg.Journal.Enabled),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initObservation 初始化广播汇、Redis 汇与事件日志
func (s *Server) initObservation() error {
	// 进程内广播汇始终开启,供 WebSocket 观测通道使用
	s.broadcast = sink.NewBroadcastSink()

	if s.cfg.Sink.Enabled {
		redisSink, err := sink.NewRedisSink(s.cfg.Sink.RedisConfig(), s.logger)
		if err != nil {
			return fmt.Errorf("connect redis sink: %w", err)
		}
		s.redisSink = redisSink
	}

	if s.cfg.Journal.Enabled {
		j, err := journal.Open(s.cfg.Journal.StoreConfig(), s.logger)
		if err != nil {
			return fmt.Errorf("open scale journal: %w", err)
		}
		s.scaleJournal = j
	}

	return nil
}

// initPipeline 构建 orchestrator 并启动扩缩容控制回路
func (s *Server) initPipeline() error {
	observers := []sink.Observer{
		sink.NewLogSink(s.logger),
		s.broadcast,
	}
	if s.redisSink != nil {
		observers = append(observers, s.redisSink)
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(s.logger),
		orchestrator.WithCollector(s.metricsCollector),
		orchestrator.WithObserver(sink.NewMultiSink(observers...)),
	}

	// 事件日志挂在评估回调上:记录失败只告警,不影响控制回路
	if s.scaleJournal != nil {
		j := s.scaleJournal
		opts = append(opts, orchestrator.WithEventHook(func(ctx context.Context, event autoscale.Event) {
			if err := j.Record(ctx, journal.ScaleEvent{
				AvgLatency:  event.AvgLatency,
				SampleCount: event.SampleCount,
				Replicas:    event.Replicas,
				Desired:     event.Decision.Desired,
				Direction:   event.Decision.Direction.String(),
				Reason:      event.Decision.Reason,
				Applied:     event.Applied,
				Error:       errString(event.Err),
			}); err != nil {
				s.logger.Warn("failed to record scale event", zap.Error(err))
			}
		}))
	}

	orch, err := orchestrator.New(s.cfg.Workflow.Spec(), s.kernel, opts...)
	if err != nil {
		return err
	}
	s.orch = orch

	return s.orch.Start(context.Background())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.scaleJournal != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("journal", s.scaleJournal.Ping))
	}
	if s.redisSink != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("redis_sink", s.redisSink.Ping))
	}

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// API 路由
	// ========================================
	submitHandler := handlers.NewSubmitHandler(s.orch, s.cfg.Server.SubmitTimeout, s.logger)
	statsHandler := handlers.NewStatsHandler(s.orch, s.logger)
	workersHandler := handlers.NewWorkersHandler(s.orch, s.logger)
	evaluateHandler := handlers.NewEvaluateHandler(s.orch, s.logger)
	observeHandler := handlers.NewObserveHandler(s.broadcast, corsOrigins(s.cfg.Server.AllowedOrigin), s.logger)

	mux.HandleFunc("/api/v1/submit", submitHandler.HandleSubmit)
	mux.HandleFunc("/api/v1/stats", statsHandler.HandleStats)
	mux.HandleFunc("/api/v1/spec", statsHandler.HandleSpec)
	mux.HandleFunc("/api/v1/workers", workersHandler.HandleWorkers)
	mux.HandleFunc("/api/v1/evaluate", evaluateHandler.HandleEvaluate)
	mux.HandleFunc("/api/v1/observe/ws", observeHandler.HandleObserve)

	if s.scaleJournal != nil {
		eventsHandler := handlers.NewEventsHandler(s.scaleJournal, s.logger)
		mux.HandleFunc("/api/v1/events", eventsHandler.HandleRecent)
		mux.HandleFunc("/api/v1/events/summary", eventsHandler.HandleSummary)
		s.logger.Info("Scale event API registered")
	}

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(corsOrigins(s.cfg.Server.AllowedOrigin)),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Server.AuthSecret != "" {
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.AuthSecret, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, middlewares...)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            s.cfg.Server.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

// corsOrigins 拆分逗号分隔的来源配置;"*" 或空串交给中间件特判
func corsOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Server.MetricsAddr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.cfg.Server.MetricsAddr))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务:先停接收面,再关管线让已接纳的工作项
// 走到终态,最后放掉观测后端。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器,不再接收新提交
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭管线:冲洗余批、排空积压、停控制回路、放倒 worker 池
	if s.orch != nil {
		if err := s.orch.Close(ctx); err != nil {
			s.logger.Error("Pipeline shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭观测后端
	if s.scaleJournal != nil {
		if err := s.scaleJournal.Close(); err != nil {
			s.logger.Error("Journal shutdown error", zap.Error(err))
		}
	}
	if s.redisSink != nil {
		if err := s.redisSink.Close(); err != nil {
			s.logger.Error("Redis sink shutdown error", zap.Error(err))
		}
	}

	// 5. 冲洗遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
