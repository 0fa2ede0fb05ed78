// Copyright (c) BatchFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 BatchFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 BatchFlow 所有 HTTP 端点的请求处理逻辑，
包括工作项提交、管线观测、扩缩容控制以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - SubmitHandler    — 同步提交处理器，经批处理管线执行并等待结果
  - StatsHandler     — 管线统计与规格查询（/api/v1/stats, /api/v1/spec）
  - WorkersHandler   — worker 池快照（/api/v1/workers）
  - EvaluateHandler  — 手动触发一次扩缩容评估（/api/v1/evaluate）
  - EventsHandler    — 扩缩容事件历史与汇总，由 journal 支撑
  - ObserveHandler   — WebSocket 观测样本流（/api/v1/observe/ws）
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射，过载类错误带 Retry-After
  - WebSocket 流式推送：补发最近样本后跟随控制循环实时转发
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
