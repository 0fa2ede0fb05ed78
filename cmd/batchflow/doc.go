// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 BatchFlow 服务端程序入口。

# 概述

cmd/batchflow 是 BatchFlow 管线的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
结构化日志（zap）、Prometheus 指标采集以及 OpenTelemetry 链路追踪。

# 核心类型

  - Server           — 主服务器，管理管线生命周期、HTTP/Metrics 双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、RateLimiter（基于 IP）、
    JWTAuth（HS256 Bearer，可选）
  - 观测链路：LogSink + BroadcastSink（WebSocket 推送）+ RedisSink（可选）
  - 扩缩容事件日志：journal（GORM，可选）记录每次评估结果
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 排空管线 → 关闭 Metrics → 释放存储
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
