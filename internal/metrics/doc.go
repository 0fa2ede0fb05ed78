// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的管线指标采集能力，覆盖
提交、组批、执行、扩缩容与 HTTP 五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按管线环节分组管理。

# 主要能力

  - 提交面指标：接纳总数 Counter、拒绝总数按 reason 分组
    （QUEUE_FULL / OVERLOADED / SHUTTING_DOWN）。
  - 组批指标：封板总数与批大小分布，按 trigger 分组
    （size / interval / close）。
  - 执行面指标：批次执行总数按 outcome 分组、单批执行耗时分布。
  - 扩缩容指标：评估周期计数按 direction/outcome 分组、
    存活与空闲副本数 Gauge、窗口平均延迟 Gauge。
  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
*/
package metrics
