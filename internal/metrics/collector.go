// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 提交面指标
	submissionsTotal prometheus.Counter
	rejectionsTotal  *prometheus.CounterVec

	// 组批指标
	flushesTotal *prometheus.CounterVec
	batchSize    *prometheus.HistogramVec

	// 执行面指标
	executionsTotal *prometheus.CounterVec
	batchLatency    prometheus.Histogram

	// 扩缩容指标
	evaluationsTotal *prometheus.CounterVec
	replicas         prometheus.Gauge
	idleWorkers      prometheus.Gauge
	windowAvgLatency prometheus.Gauge

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 提交面指标
	c.submissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of admitted work items",
		},
	)

	c.rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of rejected submissions",
		},
		[]string{"reason"}, // reason: QUEUE_FULL, OVERLOADED, SHUTTING_DOWN
	)

	// 组批指标
	c.flushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_flushes_total",
			Help:      "Total number of sealed batches",
		},
		[]string{"trigger"}, // trigger: size, interval, close
	)

	c.batchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_items",
			Help:      "Number of items per sealed batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"trigger"},
	)

	// 执行面指标
	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of executed batches",
		},
		[]string{"outcome"}, // outcome: ok, error
	)

	c.batchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_latency_seconds",
			Help:      "Wall-clock duration of one batch execution",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// 扩缩容指标
	c.evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autoscale_evaluations_total",
			Help:      "Total number of autoscaling evaluation cycles",
		},
		[]string{"direction", "outcome"}, // direction: up/down/hold, outcome: applied/failed/none
	)

	c.replicas = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replicas",
			Help:      "Current number of live workers",
		},
	)

	c.idleWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idle_workers",
			Help:      "Current number of idle workers",
		},
	)

	c.windowAvgLatency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_avg_latency_seconds",
			Help:      "Moving average batch latency over the metrics window",
		},
	)

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 📮 提交面指标记录
// =============================================================================

// RecordSubmission 记录一次成功接纳
func (c *Collector) RecordSubmission() {
	c.submissionsTotal.Inc()
}

// RecordRejection 记录一次同步拒绝
func (c *Collector) RecordRejection(reason string) {
	c.rejectionsTotal.WithLabelValues(reason).Inc()
}

// =============================================================================
// 📦 组批指标记录
// =============================================================================

// RecordFlush 记录一次批次封板
func (c *Collector) RecordFlush(trigger string, size int) {
	c.flushesTotal.WithLabelValues(trigger).Inc()
	c.batchSize.WithLabelValues(trigger).Observe(float64(size))
}

// =============================================================================
// ⚙️ 执行面指标记录
// =============================================================================

// RecordExecution 记录一次批次执行
func (c *Collector) RecordExecution(executed int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.executionsTotal.WithLabelValues(outcome).Inc()
	c.batchLatency.Observe(elapsed.Seconds())
}

// =============================================================================
// 📈 扩缩容指标记录
// =============================================================================

// RecordEvaluation 记录一次扩缩容评估周期
func (c *Collector) RecordEvaluation(direction string, applied bool, avgLatency time.Duration, replicas, idle int) {
	outcome := "none"
	if direction != "hold" {
		if applied {
			outcome = "applied"
		} else {
			outcome = "failed"
		}
	}
	c.evaluationsTotal.WithLabelValues(direction, outcome).Inc()
	c.replicas.Set(float64(replicas))
	c.idleWorkers.Set(float64(idle))
	c.windowAvgLatency.Set(avgLatency.Seconds())
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// statusCode 把数字状态码归类为 2xx/3xx/4xx/5xx
func statusCode(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return fmt.Sprintf("%d", status)
	}
}
